package webmonitor

import (
	"errors"
	"net/http"

	"github.com/Quantix-Lab/vnpy/pkg/engine"
	"github.com/Quantix-Lab/vnpy/pkg/model"
	"github.com/gin-gonic/gin"
)

func respond(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, engine.ErrUnknownGateway):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidRequest):
		status = http.StatusBadRequest
	default:
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

func (e *WebEngine) handleGateways(c *gin.Context) {
	respond(c, e.main.GetAllGatewayNames())
}

func (e *WebEngine) handleTicks(c *gin.Context) {
	respond(c, e.main.GetAllTicks())
}

func (e *WebEngine) handleOrders(c *gin.Context) {
	respond(c, e.main.GetAllOrders())
}

func (e *WebEngine) handleOrder(c *gin.Context) {
	order, ok := e.main.GetOrder(c.Param("vt_orderid"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "order not found"})
		return
	}
	respond(c, order)
}

func (e *WebEngine) handleActiveOrders(c *gin.Context) {
	respond(c, e.main.GetAllActiveOrders())
}

func (e *WebEngine) handleTrades(c *gin.Context) {
	respond(c, e.main.GetAllTrades())
}

func (e *WebEngine) handlePositions(c *gin.Context) {
	respond(c, e.main.GetAllPositions())
}

func (e *WebEngine) handleAccounts(c *gin.Context) {
	respond(c, e.main.GetAllAccounts())
}

func (e *WebEngine) handleContracts(c *gin.Context) {
	respond(c, e.main.GetAllContracts())
}

func (e *WebEngine) handleContract(c *gin.Context) {
	contract, ok := e.main.GetContract(c.Param("vt_symbol"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "contract not found"})
		return
	}
	respond(c, contract)
}

func (e *WebEngine) handleQuotes(c *gin.Context) {
	respond(c, e.main.GetAllQuotes())
}

func (e *WebEngine) handleLogs(c *gin.Context) {
	respond(c, e.main.GetLogs())
}

type sendOrderBody struct {
	GatewayName string             `json:"gateway_name" binding:"required"`
	Request     model.OrderRequest `json:"request" binding:"required"`
}

func (e *WebEngine) handleSendOrder(c *gin.Context) {
	var body sendOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	vtOrderID, err := e.main.SendOrder(body.Request, body.GatewayName)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, gin.H{"vt_orderid": vtOrderID})
}

func (e *WebEngine) handleCancelOrder(c *gin.Context) {
	order, ok := e.main.GetOrder(c.Param("vt_orderid"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "order not found"})
		return
	}
	if err := e.main.CancelOrder(order.CreateCancelRequest(), order.GatewayName); err != nil {
		respondError(c, err)
		return
	}
	respond(c, gin.H{"vt_orderid": order.VtOrderID()})
}

type subscribeBody struct {
	GatewayName string                 `json:"gateway_name" binding:"required"`
	Request     model.SubscribeRequest `json:"request" binding:"required"`
}

func (e *WebEngine) handleSubscribe(c *gin.Context) {
	var body subscribeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err := e.main.Subscribe(body.Request, body.GatewayName); err != nil {
		respondError(c, err)
		return
	}
	respond(c, gin.H{"vt_symbol": body.Request.VtSymbol()})
}
