package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/duka-app/dukago/internal/database"
	"github.com/duka-app/dukago/internal/models"
	"github.com/duka-app/dukago/internal/services/printer"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TagHandler handles scannable tag requests
type TagHandler struct {
	db      *database.DB
	printer *printer.Generator
}

// NewTagHandler creates a new tag handler
func NewTagHandler(db *database.DB, gen *printer.Generator) *TagHandler {
	return &TagHandler{db: db, printer: gen}
}

// RegisterRoutes registers tag routes
func (th *TagHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/tags", th.ListTags).Methods("GET")
	r.HandleFunc("/tags", th.CreateTag).Methods("POST")
	r.HandleFunc("/tags/labels", th.PrintLabels).Methods("POST")
	r.HandleFunc("/tags/resolve/{tagId}", th.ResolveTag).Methods("GET")
	r.HandleFunc("/tags/{id}", th.UpdateTag).Methods("PUT")
	r.HandleFunc("/tags/{id}", th.DeleteTag).Methods("DELETE")
}

// ListTags returns the business's registered tags.
func (th *TagHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var tags []models.Tag
	err := th.db.WithContext(r.Context()).
		Where("business_id = ?", caller.BusinessID).
		Order("created_at DESC").
		Find(&tags).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load tags")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tags":  tags,
		"count": len(tags),
	})
}

// CreateTag registers a tag. When no tagId is supplied one is generated.
func (th *TagHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req struct {
		TagID          string                 `json:"tagId"`
		Type           string                 `json:"type"`
		AttachedItemID *uuid.UUID             `json:"attachedItemId"`
		Meta           map[string]interface{} `json:"meta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Type == "" {
		req.Type = models.TagTypeItem
	}
	if req.Type != models.TagTypeItem && req.Type != models.TagTypeBox {
		respondError(w, http.StatusBadRequest, "type must be item or box")
		return
	}
	if req.TagID == "" {
		req.TagID = generateTagID()
	}

	tag := &models.Tag{
		TagID:          req.TagID,
		Type:           req.Type,
		BusinessID:     caller.BusinessID,
		AttachedItemID: req.AttachedItemID,
		Meta:           datatypes.JSONMap(req.Meta),
	}
	if err := th.db.WithContext(r.Context()).Create(tag).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respondError(w, http.StatusConflict, "tag id already registered")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create tag")
		return
	}

	respondJSON(w, http.StatusCreated, tag)
}

// ResolveTag looks up a scanned tag id and the item attached to it.
func (th *TagHandler) ResolveTag(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	tagID := mux.Vars(r)["tagId"]

	var tag models.Tag
	err := th.db.WithContext(r.Context()).
		Where("business_id = ? AND tag_id = ?", caller.BusinessID, tagID).
		First(&tag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "tag not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load tag")
		return
	}

	response := map[string]interface{}{"tag": tag}
	if tag.AttachedItemID != nil {
		var item models.Item
		err := th.db.WithContext(r.Context()).
			Where("business_id = ? AND id = ?", caller.BusinessID, *tag.AttachedItemID).
			First(&item).Error
		if err == nil {
			response["item"] = item
		}
	}

	respondJSON(w, http.StatusOK, response)
}

// UpdateTag attaches, detaches or re-types a tag.
func (th *TagHandler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid tag id")
		return
	}

	var req struct {
		Type           *string                `json:"type"`
		AttachedItemID *uuid.UUID             `json:"attachedItemId"`
		Detach         bool                   `json:"detach"`
		Meta           map[string]interface{} `json:"meta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var tag models.Tag
	err = th.db.WithContext(r.Context()).
		Where("business_id = ? AND id = ?", caller.BusinessID, id).
		First(&tag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "tag not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load tag")
		return
	}

	if req.Type != nil {
		tag.Type = *req.Type
	}
	if req.Detach {
		tag.AttachedItemID = nil
	} else if req.AttachedItemID != nil {
		tag.AttachedItemID = req.AttachedItemID
	}
	if req.Meta != nil {
		tag.Meta = datatypes.JSONMap(req.Meta)
	}

	if err := th.db.WithContext(r.Context()).Save(&tag).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update tag")
		return
	}

	respondJSON(w, http.StatusOK, tag)
}

// DeleteTag soft deletes a tag.
func (th *TagHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid tag id")
		return
	}

	res := th.db.WithContext(r.Context()).
		Where("business_id = ? AND id = ?", caller.BusinessID, id).
		Delete(&models.Tag{})
	if res.Error != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete tag")
		return
	}
	if res.RowsAffected == 0 {
		respondError(w, http.StatusNotFound, "tag not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// PrintLabels renders a PDF sheet of QR labels for the given tags.
func (th *TagHandler) PrintLabels(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req struct {
		TagIDs []string            `json:"tagIds"`
		Sheet  printer.SheetConfig `json:"sheet"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.TagIDs) == 0 {
		respondError(w, http.StatusBadRequest, "tagIds is required")
		return
	}

	var tags []models.Tag
	err := th.db.WithContext(r.Context()).
		Where("business_id = ? AND tag_id IN ?", caller.BusinessID, req.TagIDs).
		Find(&tags).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load tags")
		return
	}
	if len(tags) == 0 {
		respondError(w, http.StatusNotFound, "no matching tags")
		return
	}

	labels := make([]printer.Label, 0, len(tags))
	for _, tag := range tags {
		caption := ""
		if tag.AttachedItemID != nil {
			var item models.Item
			if err := th.db.WithContext(r.Context()).
				Select("name").
				Where("business_id = ? AND id = ?", caller.BusinessID, *tag.AttachedItemID).
				First(&item).Error; err == nil {
				caption = item.Name
			}
		}
		labels = append(labels, printer.Label{TagID: tag.TagID, Caption: caption})
	}

	pdfBytes, err := th.printer.GenerateLabelsPDF(labels, req.Sheet)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to render labels")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="labels.pdf"`)
	w.WriteHeader(http.StatusOK)
	w.Write(pdfBytes)
}

// generateTagID produces a short human-readable tag id.
func generateTagID() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return fmt.Sprintf("DK-%s", raw[:10])
}
