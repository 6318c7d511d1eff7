package storefront

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/giantswarm/storefront/instrumentation"
	"github.com/giantswarm/storefront/internal/validation"
	"github.com/giantswarm/storefront/security"
	"github.com/giantswarm/storefront/storage"
)

// collectionText holds the wording used in a collection's responses.
type collectionText struct {
	plural      string // "women's perfumes"
	singular    string // "Women's perfume"
	item        string // "Perfume", used in ID and not-found errors
	responseKey string // key of the product in mutation responses
}

var collectionTexts = map[storage.Collection]collectionText{
	storage.CollectionWomen:    {"women's perfumes", "Women's perfume", "Perfume", "perfume"},
	storage.CollectionMen:      {"men's perfumes", "Men's perfume", "Perfume", "perfume"},
	storage.CollectionGiftSets: {"gift sets", "Gift set", "Gift set", "giftSet"},
}

// ServeCollection returns the handler for /api/{collection}.
// GET is public. POST, PUT and DELETE require CSRF and an admin session.
func (h *Handler) ServeCollection(c storage.Collection) http.HandlerFunc {
	text := collectionTexts[c]

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "storefront.http.collection")
		defer span.End()
		r = r.WithContext(ctx)
		instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrCollection, string(c)))

		switch r.Method {
		case http.MethodGet:
			h.listProducts(w, r, c, text)
			return
		case http.MethodPost, http.MethodPut, http.MethodDelete:
		default:
			h.methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
			return
		}

		if !h.requireCSRF(w, r, span) || !h.requireAdmin(w, r, span) {
			return
		}

		switch r.Method {
		case http.MethodPost:
			h.createProduct(w, r, c, text)
		case http.MethodPut:
			h.updateProduct(w, r, c, text)
		case http.MethodDelete:
			h.deleteProduct(w, r, c, text)
		}
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request, c storage.Collection, text collectionText) {
	ctx := r.Context()
	span := spanFromRequest(r)
	instrumentation.AddStorageAttributes(span, "list_products", "product")

	start := time.Now()
	products, err := h.server.products.ListProducts(ctx, c)
	h.recordStorage(ctx, "list_products", start, err)
	if err != nil {
		h.log(ctx).Error("Failed to list products", "collection", c, "error", err)
		instrumentation.RecordError(span, err)
		h.writeError(w, ErrInternal("Failed to fetch "+text.plural))
		return
	}
	if products == nil {
		products = []*storage.Product{}
	}
	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request, c storage.Collection, text collectionText) {
	ctx := r.Context()
	span := spanFromRequest(r)

	var req validation.ProductRequest
	if !h.decodeAndValidate(w, r, span, &req) {
		return
	}

	now := h.server.clock.Now()
	product := req.Product(c)
	product.ID = h.server.newID()
	product.CreatedAt = now
	product.UpdatedAt = now

	instrumentation.AddStorageAttributes(span, "create_product", "product")
	start := time.Now()
	err := h.server.products.CreateProduct(ctx, product)
	h.recordStorage(ctx, "create_product", start, err)
	if err != nil {
		h.log(ctx).Error("Failed to create product", "collection", c, "error", err)
		instrumentation.RecordError(span, err)
		h.writeError(w, ErrInternal("Failed to add "+strings.ToLower(text.singular)))
		return
	}

	h.auditCatalogChange(r, c, "create", product.ID)
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrProductID, product.ID))
	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		text.responseKey: product,
		"message":        text.singular + " added successfully",
	})
}

// updateProduct replaces the product named by the body's id. The body is
// validated like a new product; creation time is kept.
func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request, c storage.Collection, text collectionText) {
	ctx := r.Context()
	span := spanFromRequest(r)

	var req validation.ProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		instrumentation.RecordError(span, err)
		h.writeError(w, ErrBadRequest("Invalid request body"))
		return
	}
	if req.ID == "" {
		h.writeError(w, ErrBadRequest(text.item+" ID is required"))
		return
	}
	if !h.validate(w, r, span, &req) {
		return
	}
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrProductID, req.ID))

	start := time.Now()
	existing, err := h.server.products.GetProduct(ctx, c, req.ID)
	h.recordStorage(ctx, "get_product", start, err)
	if err != nil {
		h.writeProductStoreError(w, r, text, "get_product", err)
		return
	}

	product := req.Product(c)
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = h.server.clock.Now()

	instrumentation.AddStorageAttributes(span, "update_product", "product")
	start = time.Now()
	err = h.server.products.UpdateProduct(ctx, product)
	h.recordStorage(ctx, "update_product", start, err)
	if err != nil {
		h.writeProductStoreError(w, r, text, "update_product", err)
		return
	}

	h.auditCatalogChange(r, c, "update", product.ID)
	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		text.responseKey: product,
		"message":        text.singular + " updated successfully",
	})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request, c storage.Collection, text collectionText) {
	ctx := r.Context()
	span := spanFromRequest(r)

	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, ErrBadRequest(text.item+" ID is required"))
		return
	}
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrProductID, id))

	instrumentation.AddStorageAttributes(span, "delete_product", "product")
	start := time.Now()
	err := h.server.products.DeleteProduct(ctx, c, id)
	h.recordStorage(ctx, "delete_product", start, err)
	if err != nil {
		h.writeProductStoreError(w, r, text, "delete_product", err)
		return
	}

	h.auditCatalogChange(r, c, "delete", id)
	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": text.singular + " deleted successfully",
	})
}

// writeProductStoreError maps storage.ErrNotFound to 404 and anything else to 500.
func (h *Handler) writeProductStoreError(w http.ResponseWriter, r *http.Request, text collectionText, op string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, ErrNotFound(text.item+" not found"))
		return
	}

	h.log(r.Context()).Error("Product storage operation failed", "operation", op, "error", err)
	instrumentation.RecordError(spanFromRequest(r), err)

	verb := "update"
	if op == "delete_product" {
		verb = "delete"
	}
	h.writeError(w, ErrInternal("Failed to "+verb+" "+strings.ToLower(text.singular)))
}

func (h *Handler) auditCatalogChange(r *http.Request, c storage.Collection, action, id string) {
	h.server.Auditor.LogEvent(security.Event{
		Type:      security.EventCatalogChanged,
		ClientKey: h.server.clientKeys.ClientKey(r),
		Path:      r.URL.Path,
		RequestID: security.GetRequestID(r.Context()),
		Level:     slog.LevelInfo,
		Details: map[string]any{
			"collection": string(c),
			"action":     action,
			"product_id": id,
		},
	})
}
