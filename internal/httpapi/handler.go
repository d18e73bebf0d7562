package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"log"
	"net/http"
	"strings"
	"time"

	"bcafe/restaurant-service/internal/cache"
	"bcafe/restaurant-service/internal/models"
	"bcafe/restaurant-service/internal/store"

	"github.com/google/uuid"
)

type Handler struct {
	store store.Store
	menu  *cache.MenuCache
}

func NewHandler(store store.Store, menu *cache.MenuCache) *Handler {
	return &Handler{store: store, menu: menu}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", expvar.Handler())
	mux.HandleFunc("/api/reservations", h.handleReservations)
	mux.HandleFunc("/api/reservations/", h.handleReservationActions)
	mux.HandleFunc("/api/tables", h.handleTables)
	mux.HandleFunc("/api/tables/available", h.handleAvailableTables)
	mux.HandleFunc("/api/categories", h.handleCategories)
	mux.HandleFunc("/api/menu", h.handleMenu)
	mux.HandleFunc("/api/menu/", h.handleMenuItem)
	mux.HandleFunc("/api/orders", h.handleOrders)
	mux.HandleFunc("/api/orders/", h.handleOrderActions)
	mux.HandleFunc("/api/payments", h.handlePayments)
	mux.HandleFunc("/api/invoices/", h.handleInvoice)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ---- reservations ----

type createReservationRequest struct {
	FullName       string `json:"full_name"`
	PhoneNumber    string `json:"phone_number"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	NumberOfGuests int    `json:"number_of_guests"`
	TableType      int    `json:"table_type"`
	Duration       int    `json:"duration"`
	Type           string `json:"reservation_type"`
	BirthdayDesign bool   `json:"birthday_design"`
	BirthdayCake   bool   `json:"birthday_cake"`
	ExtraNotes     string `json:"extra_notes"`
	TableID        string `json:"table_id"`
}

type updateReservationRequest struct {
	FullName    *string `json:"full_name"`
	PhoneNumber *string `json:"phone_number"`
	ExtraNotes  *string `json:"extra_notes"`
	Date        *string `json:"date"`
	Time        *string `json:"time"`
	Duration    *int    `json:"duration"`
	TableID     *string `json:"table_id"`
}

func (h *Handler) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateReservation(w, r)
	case http.MethodGet:
		h.handleListReservations(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromRequest(r)

	var req createReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	req.Type = strings.TrimSpace(req.Type)
	req.TableID = strings.TrimSpace(req.TableID)

	if req.FullName == "" {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "full_name is required")
		return
	}
	if !isValidPhone(req.PhoneNumber) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "phone_number must be exactly 11 digits")
		return
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}
	if _, err := time.Parse("15:04", req.Time); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "time must be HH:MM")
		return
	}
	if req.NumberOfGuests < 1 || req.NumberOfGuests > 80 {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "number_of_guests must be between 1 and 80")
		return
	}
	if !models.ValidCapacity(req.TableType) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "table_type must be one of 2, 4, 8, 10")
		return
	}
	if req.Duration == 0 {
		req.Duration = 60
	}
	if !models.ValidDuration(req.Duration) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "duration must be one of 60, 90, 120, 150")
		return
	}
	if req.Type == "" {
		req.Type = models.ReservationTypeNormal
	}
	if req.Type != models.ReservationTypeNormal && req.Type != models.ReservationTypeBirthday {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "reservation_type must be normal or birthday")
		return
	}
	if !isValidUUID(req.TableID) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "table_id must be a UUID")
		return
	}

	reservation, err := h.store.CreateReservation(r.Context(), store.CreateReservationInput{
		FullName:       req.FullName,
		PhoneNumber:    req.PhoneNumber,
		Date:           req.Date,
		Time:           req.Time,
		NumberOfGuests: req.NumberOfGuests,
		TableType:      req.TableType,
		Duration:       req.Duration,
		Type:           req.Type,
		BirthdayDesign: req.BirthdayDesign,
		BirthdayCake:   req.BirthdayCake,
		ExtraNotes:     strings.TrimSpace(req.ExtraNotes),
		TableID:        req.TableID,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}

	writeJSON(w, http.StatusCreated, reservation)
}

func (h *Handler) handleListReservations(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, models.RoleAdmin); !ok {
		return
	}

	filter := store.ReservationFilter{
		Date:    strings.TrimSpace(r.URL.Query().Get("date")),
		TableID: strings.TrimSpace(r.URL.Query().Get("table_id")),
	}
	if filter.Date != "" {
		if _, err := time.Parse("2006-01-02", filter.Date); err != nil {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
			return
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("approved")); raw != "" {
		approved := raw == "true"
		filter.Approved = &approved
	}
	if strings.TrimSpace(r.URL.Query().Get("upcoming")) == "true" {
		filter.Upcoming = true
		filter.Now = time.Now()
	}

	reservations, err := h.store.ListReservations(r.Context(), filter)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	if reservations == nil {
		reservations = []models.Reservation{}
	}
	writeJSON(w, http.StatusOK, reservations)
}

func (h *Handler) handleReservationActions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/reservations/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if _, ok := requireRole(w, r, models.RoleAdmin); !ok {
		return
	}

	switch {
	case len(parts) == 1:
		reservationID := parts[0]
		if !isValidUUID(reservationID) {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "reservation id must be a UUID")
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleGetReservation(w, r, reservationID)
		case http.MethodPatch:
			h.handleUpdateReservation(w, r, reservationID)
		case http.MethodDelete:
			h.handleDeleteReservation(w, r, reservationID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "approve":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isValidUUID(parts[0]) {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "reservation id must be a UUID")
			return
		}
		h.handleApproveReservation(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetReservation(w http.ResponseWriter, r *http.Request, reservationID string) {
	reservation, err := h.store.GetReservation(r.Context(), reservationID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

func (h *Handler) handleUpdateReservation(w http.ResponseWriter, r *http.Request, reservationID string) {
	requestID := requestIDFromRequest(r)

	var req updateReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	if req.PhoneNumber != nil && !isValidPhone(strings.TrimSpace(*req.PhoneNumber)) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "phone_number must be exactly 11 digits")
		return
	}
	if req.FullName != nil && strings.TrimSpace(*req.FullName) == "" {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "full_name must not be empty")
		return
	}
	if req.Date != nil {
		if _, err := time.Parse("2006-01-02", *req.Date); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
			return
		}
	}
	if req.Time != nil {
		if _, err := time.Parse("15:04", *req.Time); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "invalid_request", "time must be HH:MM")
			return
		}
	}
	if req.Duration != nil && !models.ValidDuration(*req.Duration) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "duration must be one of 60, 90, 120, 150")
		return
	}
	if req.TableID != nil && !isValidUUID(*req.TableID) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "table_id must be a UUID")
		return
	}

	reservation, err := h.store.UpdateReservation(r.Context(), store.UpdateReservationInput{
		ReservationID: reservationID,
		FullName:      req.FullName,
		PhoneNumber:   req.PhoneNumber,
		ExtraNotes:    req.ExtraNotes,
		Date:          req.Date,
		Time:          req.Time,
		Duration:      req.Duration,
		TableID:       req.TableID,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

func (h *Handler) handleApproveReservation(w http.ResponseWriter, r *http.Request, reservationID string) {
	reservation, err := h.store.ApproveReservation(r.Context(), reservationID, time.Now().UTC())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

func (h *Handler) handleDeleteReservation(w http.ResponseWriter, r *http.Request, reservationID string) {
	if err := h.store.DeleteReservation(r.Context(), reservationID); err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- tables ----

type createTableRequest struct {
	Number   int `json:"number"`
	Capacity int `json:"capacity"`
}

func (h *Handler) handleTables(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := requireRole(w, r, models.RoleAdmin); !ok {
			return
		}
		tables, err := h.store.ListTables(r.Context())
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestIDFromRequest(r), status, code, msg)
			return
		}
		if tables == nil {
			tables = []models.Table{}
		}
		writeJSON(w, http.StatusOK, tables)
	case http.MethodPost:
		if _, ok := requireRole(w, r, models.RoleAdmin); !ok {
			return
		}
		var req createTableRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		table, err := h.store.CreateTable(r.Context(), req.Number, req.Capacity)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestIDFromRequest(r), status, code, msg)
			return
		}
		writeJSON(w, http.StatusCreated, table)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleAvailableTables(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	clock := strings.TrimSpace(r.URL.Query().Get("time"))
	if date == "" || clock == "" {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "date and time are required")
		return
	}

	tables, err := h.store.ListAvailableTables(r.Context(), date, clock)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	if tables == nil {
		tables = []models.Table{}
	}
	writeJSON(w, http.StatusOK, tables)
}

// ---- categories & menu ----

type createCategoryRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		categories, err := h.store.ListCategories(r.Context())
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestIDFromRequest(r), status, code, msg)
			return
		}
		if categories == nil {
			categories = []models.Category{}
		}
		writeJSON(w, http.StatusOK, categories)
	case http.MethodPost:
		if _, ok := requireRole(w, r, models.RoleAdmin); !ok {
			return
		}
		var req createCategoryRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "name is required")
			return
		}
		category, err := h.store.CreateCategory(r.Context(), req.Name)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestIDFromRequest(r), status, code, msg)
			return
		}
		writeJSON(w, http.StatusCreated, category)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type menuItemRequest struct {
	CategoryID      string     `json:"category_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Price           float64    `json:"price"`
	Stock           int        `json:"stock"`
	IsSpecial       bool       `json:"is_special"`
	DiscountPercent int        `json:"discount_percent"`
	DiscountStart   *time.Time `json:"discount_start"`
	DiscountEnd     *time.Time `json:"discount_end"`
}

type menuItemPatchRequest struct {
	Name            *string    `json:"name"`
	Description     *string    `json:"description"`
	Price           *float64   `json:"price"`
	Stock           *int       `json:"stock"`
	IsSpecial       *bool      `json:"is_special"`
	DiscountPercent *int       `json:"discount_percent"`
	DiscountStart   *time.Time `json:"discount_start"`
	DiscountEnd     *time.Time `json:"discount_end"`
}

func (h *Handler) handleMenu(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListMenu(w, r)
	case http.MethodPost:
		h.handleCreateMenuItem(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleListMenu(w http.ResponseWriter, r *http.Request) {
	categoryID := strings.TrimSpace(r.URL.Query().Get("category_id"))
	specialOnly := strings.TrimSpace(r.URL.Query().Get("special")) == "true"
	if categoryID != "" && !isValidUUID(categoryID) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "category_id must be a UUID")
		return
	}

	items, hit, err := h.menu.GetMenu(r.Context(), categoryID, specialOnly)
	if err != nil {
		log.Printf("menu cache read failed: %v", err)
	}
	if hit {
		writeJSON(w, http.StatusOK, items)
		return
	}

	items, err = h.store.ListMenuItems(r.Context(), store.MenuFilter{
		CategoryID:  categoryID,
		SpecialOnly: specialOnly,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	if items == nil {
		items = []models.MenuItem{}
	}
	if err := h.menu.SetMenu(r.Context(), categoryID, specialOnly, items); err != nil {
		log.Printf("menu cache write failed: %v", err)
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateMenuItem(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, models.RoleAdmin); !ok {
		return
	}
	requestID := requestIDFromRequest(r)

	var req menuItemRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.CategoryID = strings.TrimSpace(req.CategoryID)
	req.Name = strings.TrimSpace(req.Name)
	if !isValidUUID(req.CategoryID) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "category_id must be a UUID")
		return
	}
	if req.Name == "" {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	item, err := h.store.CreateMenuItem(r.Context(), store.MenuItemInput{
		CategoryID:      req.CategoryID,
		Name:            req.Name,
		Description:     strings.TrimSpace(req.Description),
		Price:           req.Price,
		Stock:           req.Stock,
		IsSpecial:       req.IsSpecial,
		DiscountPercent: req.DiscountPercent,
		DiscountStart:   req.DiscountStart,
		DiscountEnd:     req.DiscountEnd,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	h.invalidateMenu(r.Context())
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) handleMenuItem(w http.ResponseWriter, r *http.Request) {
	menuItemID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/menu/"), "/")
	if !isValidUUID(menuItemID) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "menu item id must be a UUID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := h.store.GetMenuItem(r.Context(), menuItemID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestIDFromRequest(r), status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPatch:
		if _, ok := requireRole(w, r, models.RoleAdmin); !ok {
			return
		}
		var req menuItemPatchRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		item, err := h.store.UpdateMenuItem(r.Context(), menuItemID, store.MenuItemPatch{
			Name:            req.Name,
			Description:     req.Description,
			Price:           req.Price,
			Stock:           req.Stock,
			IsSpecial:       req.IsSpecial,
			DiscountPercent: req.DiscountPercent,
			DiscountStart:   req.DiscountStart,
			DiscountEnd:     req.DiscountEnd,
		})
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestIDFromRequest(r), status, code, msg)
			return
		}
		h.invalidateMenu(r.Context())
		writeJSON(w, http.StatusOK, item)
	case http.MethodDelete:
		if _, ok := requireRole(w, r, models.RoleAdmin); !ok {
			return
		}
		if err := h.store.DeleteMenuItem(r.Context(), menuItemID); err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestIDFromRequest(r), status, code, msg)
			return
		}
		h.invalidateMenu(r.Context())
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) invalidateMenu(ctx context.Context) {
	if err := h.menu.Invalidate(ctx); err != nil {
		log.Printf("menu cache invalidation failed: %v", err)
	}
}

// ---- orders ----

type orderLineRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

type createOrderRequest struct {
	TableID string             `json:"table_id"`
	Note    string             `json:"note"`
	Items   []orderLineRequest `json:"items"`
}

type updateOrderRequest struct {
	Items   []orderLineRequest `json:"items"`
	Note    *string            `json:"note"`
	TableID *string            `json:"table_id"`
}

type orderStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateOrder(w, r)
	case http.MethodGet:
		h.handleListOrders(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	session, ok := requireRole(w, r, models.RoleCustomer, models.RoleWaiter, models.RoleCashier, models.RoleAdmin)
	if !ok {
		return
	}
	requestID := requestIDFromRequest(r)

	var req createOrderRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.TableID = strings.TrimSpace(req.TableID)
	if req.TableID != "" && !isValidUUID(req.TableID) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "table_id must be a UUID")
		return
	}
	lines, msg := orderLines(req.Items)
	if msg != "" {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	order, err := h.store.CreateOrder(r.Context(), store.CreateOrderInput{
		UserID:    session.UserID,
		TableID:   req.TableID,
		Note:      strings.TrimSpace(req.Note),
		Lines:     lines,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	h.invalidateMenu(r.Context())
	writeJSON(w, http.StatusCreated, order)
}

func orderLines(items []orderLineRequest) ([]store.OrderLine, string) {
	if len(items) == 0 {
		return nil, "items must not be empty"
	}
	lines := make([]store.OrderLine, 0, len(items))
	for _, item := range items {
		if !isValidUUID(strings.TrimSpace(item.MenuItemID)) {
			return nil, "menu_item_id must be a UUID"
		}
		if item.Quantity <= 0 {
			return nil, "quantity must be positive"
		}
		lines = append(lines, store.OrderLine{
			MenuItemID: strings.TrimSpace(item.MenuItemID),
			Quantity:   item.Quantity,
		})
	}
	return lines, ""
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	session, ok := requireRole(w, r, models.RoleCustomer, models.RoleWaiter, models.RoleCashier, models.RoleAdmin)
	if !ok {
		return
	}

	// Each role sees the slice of the ledger it works with.
	var filter store.OrderFilter
	switch session.Role {
	case models.RoleCustomer:
		filter.UserID = session.UserID
	case models.RoleWaiter:
		filter.Statuses = []string{models.OrderPending}
	case models.RoleCashier:
		filter.Statuses = []string{models.OrderPending, models.OrderConfirmed}
	}

	orders, err := h.store.ListOrders(r.Context(), filter)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) handleOrderActions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if !isValidUUID(parts[0]) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "order id must be a UUID")
		return
	}
	orderID := parts[0]

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.handleGetOrder(w, r, orderID)
		case http.MethodPatch:
			h.handleUpdateOrder(w, r, orderID)
		case http.MethodDelete:
			h.handleDeleteOrder(w, r, orderID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "status":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleOrderStatus(w, r, orderID)
	case len(parts) == 3 && parts[1] == "items":
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isValidUUID(parts[2]) {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "order item id must be a UUID")
			return
		}
		h.handleDeleteOrderItem(w, r, orderID, parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// requireOrderAccess loads the order and enforces that customers only touch
// their own orders. Staff roles pass through.
func (h *Handler) requireOrderAccess(w http.ResponseWriter, r *http.Request, orderID string, roles ...string) (store.Session, bool) {
	session, ok := requireRole(w, r, roles...)
	if !ok {
		return store.Session{}, false
	}
	if session.Role != models.RoleCustomer {
		return session, true
	}
	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return store.Session{}, false
	}
	if order.UserID != session.UserID {
		writeError(w, requestIDFromRequest(r), http.StatusForbidden, "access_denied", "access denied")
		return store.Session{}, false
	}
	return session, true
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request, orderID string) {
	if _, ok := h.requireOrderAccess(w, r, orderID, models.RoleCustomer, models.RoleWaiter, models.RoleCashier, models.RoleAdmin); !ok {
		return
	}
	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleUpdateOrder(w http.ResponseWriter, r *http.Request, orderID string) {
	if _, ok := h.requireOrderAccess(w, r, orderID, models.RoleCustomer, models.RoleWaiter, models.RoleAdmin); !ok {
		return
	}
	requestID := requestIDFromRequest(r)

	var req updateOrderRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if req.TableID != nil && *req.TableID != "" && !isValidUUID(*req.TableID) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "table_id must be a UUID")
		return
	}
	// Items are optional on an edit; without them only note/table change.
	var lines []store.OrderLine
	if len(req.Items) > 0 {
		var msg string
		lines, msg = orderLines(req.Items)
		if msg != "" {
			writeError(w, requestID, http.StatusBadRequest, "invalid_request", msg)
			return
		}
	}

	order, err := h.store.ReplaceOrderItems(r.Context(), store.ReplaceOrderItemsInput{
		OrderID: orderID,
		Lines:   lines,
		Note:    req.Note,
		TableID: req.TableID,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	h.invalidateMenu(r.Context())
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleOrderStatus(w http.ResponseWriter, r *http.Request, orderID string) {
	session, ok := requireRole(w, r, models.RoleCustomer, models.RoleWaiter, models.RoleCashier, models.RoleAdmin)
	if !ok {
		return
	}
	requestID := requestIDFromRequest(r)

	var req orderStatusRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.Status = strings.TrimSpace(req.Status)
	switch req.Status {
	case models.OrderConfirmed, models.OrderPaid, models.OrderCancelled:
	default:
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "status must be confirmed, paid, or cancelled")
		return
	}

	order, err := h.store.UpdateOrderStatus(r.Context(), store.OrderStatusInput{
		OrderID: orderID,
		To:      req.Status,
		Role:    session.Role,
		ActorID: session.UserID,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleDeleteOrderItem(w http.ResponseWriter, r *http.Request, orderID, orderItemID string) {
	if _, ok := h.requireOrderAccess(w, r, orderID, models.RoleCustomer, models.RoleWaiter, models.RoleCashier, models.RoleAdmin); !ok {
		return
	}
	order, err := h.store.DeleteOrderItem(r.Context(), orderID, orderItemID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	h.invalidateMenu(r.Context())
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleDeleteOrder(w http.ResponseWriter, r *http.Request, orderID string) {
	if _, ok := h.requireOrderAccess(w, r, orderID, models.RoleCustomer, models.RoleAdmin); !ok {
		return
	}
	if err := h.store.DeleteOrder(r.Context(), orderID); err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	h.invalidateMenu(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// ---- payments & invoices ----

type createPaymentRequest struct {
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
}

func (h *Handler) handlePayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	session, ok := requireRole(w, r, models.RoleCashier)
	if !ok {
		return
	}
	requestID := requestIDFromRequest(r)

	var req createPaymentRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	if !isValidUUID(req.OrderID) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "order_id must be a UUID")
		return
	}
	if req.Amount <= 0 {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "amount must be positive")
		return
	}

	payment, err := h.store.CreatePayment(r.Context(), store.PaymentInput{
		OrderID: req.OrderID,
		Amount:  req.Amount,
		Role:    session.Role,
		ActorID: session.UserID,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

func (h *Handler) handleInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	orderID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/invoices/"), "/")
	if !isValidUUID(orderID) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "order id must be a UUID")
		return
	}
	if _, ok := h.requireOrderAccess(w, r, orderID, models.RoleCustomer, models.RoleWaiter, models.RoleCashier, models.RoleAdmin); !ok {
		return
	}

	invoice, err := h.store.GetInvoice(r.Context(), orderID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

// ---- shared helpers ----

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func isValidPhone(value string) bool {
	if len(value) != 11 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func mapError(err error) (int, string, string) {
	var validation store.ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest, "validation_failed", validation.Error()
	}
	var short store.InsufficientStockError
	if errors.As(err, &short) {
		return http.StatusBadRequest, "insufficient_stock", short.Error()
	}

	switch {
	case errors.Is(err, store.ErrTableNotFound),
		errors.Is(err, store.ErrReservationNotFound),
		errors.Is(err, store.ErrCategoryNotFound),
		errors.Is(err, store.ErrMenuItemNotFound),
		errors.Is(err, store.ErrOrderNotFound),
		errors.Is(err, store.ErrOrderItemNotFound),
		errors.Is(err, store.ErrInvoiceNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, store.ErrTimeSlotTaken):
		return http.StatusConflict, "slot_taken", err.Error()
	case errors.Is(err, store.ErrCeilingReached):
		return http.StatusConflict, "ceiling_reached", err.Error()
	case errors.Is(err, store.ErrReservationLocked):
		return http.StatusConflict, "reservation_locked", err.Error()
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", err.Error()
	case errors.Is(err, store.ErrDuplicateTable):
		return http.StatusConflict, "duplicate_table", err.Error()
	case errors.Is(err, store.ErrDuplicateMenuItem):
		return http.StatusConflict, "duplicate_menu_item", err.Error()
	case errors.Is(err, store.ErrAccessDenied):
		return http.StatusForbidden, "access_denied", err.Error()
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusUnauthorized, "unauthorized", "invalid session"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
