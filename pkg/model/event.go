package model

// Event types published by gateways. Each push emits the general type plus
// a keyed variant so a consumer can subscribe to a single instrument,
// order, account or quote without filtering the full stream.
const (
	EventTick     = "eTick."
	EventTrade    = "eTrade."
	EventOrder    = "eOrder."
	EventPosition = "ePosition."
	EventAccount  = "eAccount."
	EventQuote    = "eQuote."
	EventContract = "eContract."
	EventLog      = "eLog"
)

// EventTickOf is the keyed tick event type for one instrument.
func EventTickOf(vtSymbol string) string { return EventTick + vtSymbol }

// EventTradeOf is the keyed trade event type for one instrument.
func EventTradeOf(vtSymbol string) string { return EventTrade + vtSymbol }

// EventOrderOf is the keyed order event type for one order.
func EventOrderOf(vtOrderID string) string { return EventOrder + vtOrderID }

// EventPositionOf is the keyed position event type for one instrument.
func EventPositionOf(vtSymbol string) string { return EventPosition + vtSymbol }

// EventAccountOf is the keyed account event type for one account.
func EventAccountOf(vtAccountID string) string { return EventAccount + vtAccountID }

// EventQuoteOf is the keyed quote event type for one quote.
func EventQuoteOf(vtQuoteID string) string { return EventQuote + vtQuoteID }
