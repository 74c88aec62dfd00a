package enum

// Product classifies the traded instrument.
type Product string

const (
	ProductEquity  Product = "EQUITY"
	ProductFutures Product = "FUTURES"
	ProductOption  Product = "OPTION"
	ProductSpot    Product = "SPOT"
	ProductForex   Product = "FOREX"
	ProductIndex   Product = "INDEX"
)

// Exchange identifies the venue an instrument trades on. Gateways report
// which exchanges they cover; ExchangeLocal is for simulated or synthetic
// instruments that exist only inside this process.
type Exchange string

const (
	ExchangeNASDAQ  Exchange = "NASDAQ"
	ExchangeNYSE    Exchange = "NYSE"
	ExchangeCME     Exchange = "CME"
	ExchangeBinance Exchange = "BINANCE"
	ExchangeOTC     Exchange = "OTC"
	ExchangeLocal   Exchange = "LOCAL"
)
