package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limitermemory "github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"autoparts/backend/internal/domain"
	"autoparts/backend/internal/draft"
	"autoparts/backend/internal/report"
	"autoparts/backend/internal/service"
	"autoparts/backend/internal/store"
)

const (
	confirmPINHeader = "X-Confirm-PIN"
	pinRate          = "8-M"
	maxBodyBytes     = 1 << 20
)

type Options struct {
	AllowedOrigin string
	// LoginRate uses the limiter format, e.g. "5-M" for five per minute.
	LoginRate string
	StoreName string
	// Location dates receipts; nil means UTC.
	Location *time.Location
	Logger   *zap.Logger
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	storeName     string
	loc           *time.Location
	log           *zap.Logger
	loginLimiter  *stdlib.Middleware
	pinLimiter    *limiter.Limiter
}

func New(svc *service.Service, auth *AuthManager, opts Options) (*API, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.LoginRate == "" {
		opts.LoginRate = "5-M"
	}
	if opts.StoreName == "" {
		opts.StoreName = "Auto Parts"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	loginRate, err := limiter.NewRateFromFormatted(opts.LoginRate)
	if err != nil {
		return nil, fmt.Errorf("login rate %q: %w", opts.LoginRate, err)
	}
	confirmRate, err := limiter.NewRateFromFormatted(pinRate)
	if err != nil {
		return nil, fmt.Errorf("pin rate: %w", err)
	}

	loginLimiter := stdlib.NewMiddleware(
		limiter.New(limitermemory.NewStore(), loginRate),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		}),
	)

	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: opts.AllowedOrigin,
		storeName:     opts.StoreName,
		loc:           opts.Location,
		log:           logger.Named("http"),
		loginLimiter:  loginLimiter,
		pinLimiter:    limiter.New(limitermemory.NewStore(), confirmRate),
	}, nil
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.Handle("/api/v1/auth/login", a.loginLimiter.Handler(http.HandlerFunc(a.handleLogin)))

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts))
	mux.HandleFunc("/api/v1/products/low-stock", a.requireAuth(a.handleLowStock))
	mux.HandleFunc("/api/v1/products/{id}", a.requireAuth(a.handleProduct))
	mux.HandleFunc("/api/v1/suppliers", a.requireAuth(a.handleSuppliers))
	mux.HandleFunc("/api/v1/suppliers/{id}", a.requireAuth(a.handleSupplier))

	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales))
	mux.HandleFunc("/api/v1/sales/{id}", a.requireAuth(a.handleSale))
	mux.HandleFunc("/api/v1/sales/{id}/receipt", a.requireAuth(a.handleReceipt))

	mux.HandleFunc("/api/v1/drafts", a.requireAuth(a.handleDrafts))
	mux.HandleFunc("/api/v1/drafts/{id}", a.requireAuth(a.handleDraft))
	mux.HandleFunc("/api/v1/drafts/{id}/items", a.requireAuth(a.handleDraftItems))
	mux.HandleFunc("/api/v1/drafts/{id}/items/{lineID}", a.requireAuth(a.handleDraftLine))
	mux.HandleFunc("/api/v1/drafts/{id}/submit", a.requireAuth(a.handleDraftSubmit))

	mux.HandleFunc("/api/v1/dashboard", a.requireAuth(a.handleDashboard))
	mux.HandleFunc("/api/v1/reports/sales", a.requireAuth(a.handleSalesReport))
	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

// requireConfirmPIN checks the X-Confirm-PIN header. Only failed attempts
// count towards the per-client limit.
func (a *API) requireConfirmPIN(w http.ResponseWriter, r *http.Request) bool {
	key := "pin:" + clientKey(r)
	state, err := a.pinLimiter.Peek(r.Context(), key)
	if err != nil {
		a.writeInternalError(w, err)
		return false
	}
	if state.Reached {
		writeError(w, http.StatusTooManyRequests, errors.New("too many PIN attempts"))
		return false
	}

	if a.auth.ValidateConfirmPIN(r.Header.Get(confirmPINHeader)) {
		return true
	}

	state, err = a.pinLimiter.Get(r.Context(), key)
	if err != nil {
		a.writeInternalError(w, err)
		return false
	}
	if state.Reached {
		writeError(w, http.StatusTooManyRequests, errors.New("too many PIN attempts"))
		return false
	}
	writeError(w, http.StatusForbidden, errors.New("invalid confirmation PIN"))
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		a.log.Info("login rejected", zap.String("username", req.Username), zap.String("client", clientKey(r)))
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	products, err := a.service.LowStockProducts(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		product, err := a.service.GetProduct(r.Context(), id)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodPatch:
		var req domain.ProductUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.UpdateProduct(r.Context(), id, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodDelete:
		if !a.requireConfirmPIN(w, r) {
			return
		}
		if err := a.service.DeleteProduct(r.Context(), id); err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		suppliers, err := a.service.ListSuppliers(r.Context())
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"suppliers": suppliers})
	case http.MethodPost:
		var req domain.SupplierCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		supplier, err := a.service.CreateSupplier(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"supplier": supplier})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSupplier(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		supplier, err := a.service.GetSupplier(r.Context(), id)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"supplier": supplier})
	case http.MethodPatch:
		var req domain.SupplierUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		supplier, err := a.service.UpdateSupplier(r.Context(), id, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"supplier": supplier})
	case http.MethodDelete:
		if !a.requireConfirmPIN(w, r) {
			return
		}
		if err := a.service.DeleteSupplier(r.Context(), id); err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sales, err := a.service.ListSales(r.Context())
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
	case http.MethodPost:
		var req domain.SaleCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := a.service.CreateSale(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSale(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	sale, err := a.service.GetSale(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	sale, err := a.service.GetSale(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.ReceiptPDF(&buf, a.storeName, a.loc, sale); err != nil {
		a.writeInternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"receipt-%s.pdf\"", sale.InvoiceNumber))
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleDrafts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.DraftCreateRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := a.service.CreateDraft(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"draft": created})
}

func (a *API) handleDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		d, err := a.service.GetDraft(r.Context(), id)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"draft": d})
	case http.MethodPatch:
		var req domain.DraftUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		d, err := a.service.UpdateDraft(r.Context(), id, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"draft": d})
	case http.MethodDelete:
		if err := a.service.DiscardDraft(r.Context(), id); err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDraftItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.DraftItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d, err := a.service.AddDraftItem(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft": d})
}

func (a *API) handleDraftLine(w http.ResponseWriter, r *http.Request) {
	id, lineID := r.PathValue("id"), r.PathValue("lineID")
	switch r.Method {
	case http.MethodPatch:
		var req domain.DraftLineUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		d, err := a.service.UpdateDraftLine(r.Context(), id, lineID, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"draft": d})
	case http.MethodDelete:
		d, err := a.service.RemoveDraftLine(r.Context(), id, lineID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"draft": d})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDraftSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	sale, err := a.service.SubmitDraft(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	stats, err := a.service.Dashboard(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	format := strings.ToLower(strings.TrimSpace(query.Get("format")))

	rep, err := a.service.SalesReport(r.Context(), query.Get("from"), query.Get("to"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	var (
		buf         bytes.Buffer
		contentType string
		disposition string
	)
	switch format {
	case "", "json":
		writeJSON(w, http.StatusOK, rep)
		return
	case "csv":
		err = report.CSV(&buf, rep)
		contentType = "text/csv; charset=utf-8"
		disposition = fmt.Sprintf("attachment; filename=%q", report.Filename(rep, "csv"))
	case "html":
		err = report.HTML(&buf, rep)
		contentType = "text/html; charset=utf-8"
	case "pdf":
		err = report.PDF(&buf, rep)
		contentType = "application/pdf"
		disposition = fmt.Sprintf("attachment; filename=%q", report.Filename(rep, "pdf"))
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unsupported format %q", format))
		return
	}
	if err != nil {
		a.writeInternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if disposition != "" {
		w.Header().Set("Content-Disposition", disposition)
	}
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+confirmPINHeader)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(startedAt)),
		)
	})
}

// writeServiceError maps service and store errors onto HTTP statuses.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, draft.ErrLineNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrInactive), errors.Is(err, draft.ErrEmpty):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, draft.ErrInvalidQuantity), errors.Is(err, draft.ErrNegativeAmount):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		a.writeInternalError(w, err)
	}
}

func (a *API) writeInternalError(w http.ResponseWriter, err error) {
	a.log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// decodeOptionalJSON accepts an empty body and leaves dest untouched.
func decodeOptionalJSON(r *http.Request, dest any) error {
	if err := decodeJSON(r, dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses get a generic message; 4xx messages are user-facing.
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
