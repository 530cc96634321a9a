package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/tender"
)

// TenderHandler exposes the breakdown codec so terminals can validate and
// normalize what they send.
type TenderHandler struct{}

func NewTenderHandler() *TenderHandler {
	return &TenderHandler{}
}

type DecodeRequest struct {
	Encoded string `json:"encoded"`
}

type BreakdownResponse struct {
	Encoded      string           `json:"encoded"`
	Entries      tender.Breakdown `json:"entries"`
	Total        decimal.Decimal  `json:"total"`
	NonDebtTotal decimal.Decimal  `json:"non_debt_total"`
	DebtTotal    decimal.Decimal  `json:"debt_total"`
}

type EncodeRequest struct {
	Entries []TenderInput `json:"entries"`
}

func breakdownResponse(b tender.Breakdown) BreakdownResponse {
	return BreakdownResponse{
		Encoded:      tender.Encode(b),
		Entries:      b,
		Total:        b.Total(),
		NonDebtTotal: b.NonDebtTotal(),
		DebtTotal:    b.DebtTotal(),
	}
}

func (h *TenderHandler) Decode(c *gin.Context) {
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	b, err := tender.Decode(req.Encoded)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, breakdownResponse(b))
}

func (h *TenderHandler) Encode(c *gin.Context) {
	var req EncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	b := make(tender.Breakdown, 0, len(req.Entries))
	for _, in := range req.Entries {
		e, err := tender.NewEntry(in.Label, in.Amount)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		b = append(b, e)
	}
	if err := b.Validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, breakdownResponse(b))
}
