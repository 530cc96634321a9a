package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/obligation"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/service"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/telemetry"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/tender"
)

type ObligationHandler struct {
	processor *service.Processor
	timeout   time.Duration
	retries   int
}

func NewObligationHandler(processor *service.Processor, timeout time.Duration, retries int) *ObligationHandler {
	return &ObligationHandler{
		processor: processor,
		timeout:   timeout,
		retries:   retries,
	}
}

type CreateObligationRequest struct {
	ID         string                `json:"id"`
	Kind       models.ObligationKind `json:"kind" binding:"required"`
	Department string                `json:"department"`
	TotalDue   decimal.Decimal       `json:"total_due"`
	Lines      []models.LineItem     `json:"lines"`
}

type TenderInput struct {
	Label  string          `json:"label" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// SettlementRequest carries tenders either as a list or in the encoded
// "label:amount,..." form older terminals send.
type SettlementRequest struct {
	EventID    string        `json:"event_id" binding:"required"`
	Entries    []TenderInput `json:"entries"`
	Tenders    string        `json:"tenders"`
	DebtorName string        `json:"debtor_name"`
	Actor      string        `json:"actor"`
}

func (r SettlementRequest) breakdown() (tender.Breakdown, error) {
	if r.Tenders != "" && len(r.Entries) > 0 {
		return nil, fmt.Errorf("send either entries or tenders, not both")
	}
	if r.Tenders != "" {
		return tender.Decode(r.Tenders)
	}
	out := make(tender.Breakdown, 0, len(r.Entries))
	for _, in := range r.Entries {
		e, err := tender.NewEntry(in.Label, in.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (h *ObligationHandler) CreateObligation(c *gin.Context) {
	var req CreateObligationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		telemetry.Logger.Error("Error decoding obligation", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	obl, err := h.processor.Create(c.Request.Context(), obligation.NewParams{
		ID:         req.ID,
		Kind:       req.Kind,
		Department: req.Department,
		TotalDue:   req.TotalDue,
		Lines:      req.Lines,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, obl)
}

func (h *ObligationHandler) GetObligation(c *gin.Context) {
	obl, err := h.processor.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, obl)
}

func (h *ObligationHandler) ApplySettlement(c *gin.Context) {
	obligationID := c.Param("id")

	var req SettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		telemetry.Logger.Error("Error decoding settlement", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	entries, err := req.breakdown()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.processor.ApplyWithRetry(ctx, obligationID, models.SettlementEvent{
		ID:           req.EventID,
		ObligationID: obligationID,
		Entries:      entries,
		DebtorName:   req.DebtorName,
		Actor:        req.Actor,
	}, h.retries)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ObligationHandler) Redeliver(c *gin.Context) {
	trigger, err := h.processor.Redeliver(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, trigger)
}
