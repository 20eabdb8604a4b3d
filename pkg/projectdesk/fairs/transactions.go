package fairs

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/projectdesk/pkg/projectdesk/access"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/metrics"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"github.com/shrimpsizemoose/trekker/logger"
	"gorm.io/gorm"
)

// CreateTransactionRequest buys another group's selection
type CreateTransactionRequest struct {
	GroupDeliverableSelectionID uint `json:"group_deliverable_selection_id" binding:"required"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID                          uint      `json:"id"`
	FairID                      uint      `json:"fair_id"`
	BuyerGroupID                uint      `json:"buyer_group_id"`
	BuyerGroupName              string    `json:"buyer_group_name"`
	GroupDeliverableSelectionID uint      `json:"group_deliverable_selection_id"`
	SellerGroupID               uint      `json:"seller_group_id"`
	SellerGroupName             string    `json:"seller_group_name"`
	Timestamp                   time.Time `json:"timestamp"`
}

func toTransaction(t models.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                          t.ID,
		FairID:                      t.FairID,
		BuyerGroupID:                t.BuyerGroupID,
		BuyerGroupName:              t.BuyerGroup.Name,
		GroupDeliverableSelectionID: t.GroupDeliverableSelectionID,
		SellerGroupID:               t.Selection.GroupID,
		SellerGroupName:             t.Selection.Group.Name,
		Timestamp:                   t.Timestamp,
	}
}

func (h *Handler) transactions(q *gorm.DB) ([]TransactionResponse, error) {
	var rows []models.Transaction
	if err := q.Preload("BuyerGroup").Preload("Selection.Group").Order("timestamp ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]TransactionResponse, len(rows))
	for i, t := range rows {
		out[i] = toTransaction(t)
	}
	return out, nil
}

// studentFair loads :id and the current student's membership in the fair's
// project. member is nil when the student has no group there.
func (h *Handler) studentFair(c *gin.Context) (*models.Fair, *models.GroupMember, bool) {
	userID, _ := auth.GetUserID(c)
	id, ok := access.ParamID(c, "id", "fair")
	if !ok {
		return nil, nil, false
	}
	var fair models.Fair
	if err := h.db.First(&fair, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Fair not found"})
		return nil, nil, false
	}
	member, err := access.ProjectMembership(h.db, userID, fair.ProjectID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch fair", err)
		return nil, nil, false
	}
	return &fair, member, true
}

// CreateTransaction records the student's group buying a selection at a fair
func (h *Handler) CreateTransaction(c *gin.Context) {
	fair, member, ok := h.studentFair(c)
	if !ok {
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if member == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "You are not in a group of this fair's project"})
		return
	}
	if !member.IsLeader() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the group leader can buy at a fair"})
		return
	}
	now := h.now()
	if !fair.Running(now) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "The fair is not running"})
		return
	}

	var selection models.GroupDeliverableSelection
	if err := h.db.Preload("Group").First(&selection, req.GroupDeliverableSelectionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Selection not found"})
		return
	}
	if selection.Group.ProjectID != fair.ProjectID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Selection belongs to another project"})
		return
	}
	if selection.GroupID == member.GroupID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "A group cannot buy its own deliverable"})
		return
	}

	tx := models.Transaction{
		BuyerGroupID:                member.GroupID,
		GroupDeliverableSelectionID: selection.ID,
		FairID:                      fair.ID,
		Timestamp:                   now.UTC(),
	}
	if err := h.db.Create(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Your group already bought this deliverable at this fair"})
			return
		}
		logging.Fail(c, http.StatusInternalServerError, "Failed to record transaction", err)
		return
	}

	metrics.TransactionsTotal.Inc()
	logger.Info.Printf("Group %d bought selection %d at fair %d", tx.BuyerGroupID, tx.GroupDeliverableSelectionID, tx.FairID)

	var buyer models.Group
	h.db.First(&buyer, tx.BuyerGroupID)
	tx.BuyerGroup = buyer
	tx.Selection = selection
	c.JSON(http.StatusCreated, toTransaction(tx))
}

// ListTransactions lists what the student's group bought at a fair
func (h *Handler) ListTransactions(c *gin.Context) {
	fair, member, ok := h.studentFair(c)
	if !ok {
		return
	}
	if member == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Fair not found"})
		return
	}

	out, err := h.transactions(h.db.Where("fair_id = ? AND buyer_group_id = ?", fair.ID, member.GroupID))
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch transactions", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// AdminListTransactions lists every transaction of a fair
func (h *Handler) AdminListTransactions(c *gin.Context) {
	fair, ok := h.adminFair(c)
	if !ok {
		return
	}

	out, err := h.transactions(h.db.Where("fair_id = ?", fair.ID))
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch transactions", err)
		return
	}
	c.JSON(http.StatusOK, out)
}
