// Package httpapi REST API заказов поверх gorilla/mux.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront-order-service/internal/domain"
	"github.com/example/storefront-order-service/internal/metrics"
	"github.com/example/storefront-order-service/internal/usecase"
)

const maxBodyBytes = 1 << 20

// ConfirmationVerifier проверяет подпись уведомления шлюза и извлекает из него
// подтверждение оплаты. ok=false для событий, не относящихся к оплате.
type ConfirmationVerifier interface {
	Confirmation(payload []byte, signature string) (pc domain.PaymentConfirmation, ok bool, err error)
}

// Deps use case'ы и инфраструктура, нужные серверу.
type Deps struct {
	PlaceOrder     usecase.PlaceOrder
	ListOrders     usecase.ListOrders
	ListMyOrders   usecase.ListMyOrders
	GetOrder       usecase.GetOrderByID
	PayOrder       usecase.PayOrder
	ConfirmPayment usecase.ConfirmPayment
	MarkDelivered  usecase.MarkDelivered
	Reports        usecase.Reports

	// Webhook nil отключает приём уведомлений от шлюза по HTTP.
	Webhook ConfirmationVerifier
	Metrics *metrics.Metrics
	Log     logrus.FieldLogger
}

type Server struct {
	Router *mux.Router
	deps   Deps
	log    logrus.FieldLogger
}

func NewServer(d Deps) *Server {
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	s := &Server{Router: mux.NewRouter(), deps: d, log: d.Log.WithField("component", "http")}
	s.Router.Use(s.requestID, s.instrument)

	s.Router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.Router.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)
	s.Router.HandleFunc("/api/payments/webhook", s.handleWebhook).Methods(http.MethodPost)

	api := s.Router.PathPrefix("/api/orders").Subrouter()
	api.Use(s.authenticate)
	api.HandleFunc("", s.handlePlace).Methods(http.MethodPost)
	api.HandleFunc("", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/mine", s.handleMine).Methods(http.MethodGet)
	api.HandleFunc("/total-orders", s.handleTotalOrders).Methods(http.MethodGet)
	api.HandleFunc("/total-sales", s.handleTotalSales).Methods(http.MethodGet)
	api.HandleFunc("/total-sales-by-date", s.handleSalesByDate).Methods(http.MethodGet)
	api.HandleFunc("/{id}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/{id}/pay", s.handlePay).Methods(http.MethodPut)
	api.HandleFunc("/{id}/deliver", s.handleDeliver).Methods(http.MethodPut)
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type placeOrderRequest struct {
	OrderItems []struct {
		ID  string `json:"_id"`
		Qty int    `json:"qty"`
	} `json:"orderItems"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in := usecase.PlaceOrderInput{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	}
	for _, it := range req.OrderItems {
		in.Items = append(in.Items, usecase.CartLine{ProductID: it.ID, Quantity: it.Qty})
	}
	o, replayed, err := s.deps.PlaceOrder.Execute(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, toOrderJSON(o))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	orders, err := s.deps.ListOrders.Execute(r.Context(), actorFrom(r.Context()))
	s.writeOrders(w, r, orders, err)
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	orders, err := s.deps.ListMyOrders.Execute(r.Context(), actorFrom(r.Context()))
	s.writeOrders(w, r, orders, err)
}

func (s *Server) writeOrders(w http.ResponseWriter, r *http.Request, orders []domain.Order, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]orderJSON, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderJSON(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	o, err := s.deps.GetOrder.Execute(r.Context(), actorFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderJSON(o))
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	session, err := s.deps.PayOrder.Execute(r.Context(), actorFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": session.URL, "sessionId": session.ID})
}

func (s *Server) handleDeliver(w http.ResponseWriter, r *http.Request) {
	o, err := s.deps.MarkDelivered.Execute(r.Context(), actorFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderJSON(o))
}

func (s *Server) handleTotalOrders(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Reports.CountOrders(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"totalOrders": n})
}

func (s *Server) handleTotalSales(w http.ResponseWriter, r *http.Request) {
	total, err := s.deps.Reports.TotalSales(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"totalSales": total.StringFixed(2)})
}

func (s *Server) handleSalesByDate(w http.ResponseWriter, r *http.Request) {
	days, err := s.deps.Reports.SalesByDay(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]dailySalesJSON, 0, len(days))
	for _, d := range days {
		out = append(out, dailySalesJSON{Date: d.Date, TotalSales: d.TotalSales.StringFixed(2)})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleWebhook на неоплаченные и посторонние события отвечает 200, чтобы шлюз
// не повторял доставку.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.deps.Webhook == nil {
		http.NotFound(w, r)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "cannot read body"})
		return
	}
	pc, ok, err := s.deps.Webhook.Confirmation(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		s.deps.Metrics.Confirmations.WithLabelValues("webhook", "rejected").Inc()
		s.writeError(w, r, err)
		return
	}
	if !ok || !pc.Paid {
		s.deps.Metrics.Confirmations.WithLabelValues("webhook", "ignored").Inc()
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	if _, err := s.deps.ConfirmPayment.Execute(r.Context(), pc); err != nil {
		s.deps.Metrics.Confirmations.WithLabelValues("webhook", "rejected").Inc()
		s.writeError(w, r, err)
		return
	}
	s.deps.Metrics.Confirmations.WithLabelValues("webhook", "applied").Inc()
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return validationErr("malformed request body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type ctxKey int

const (
	actorKey ctxKey = iota
	requestIDKey
)

func actorFrom(ctx context.Context) domain.Actor {
	a, _ := ctx.Value(actorKey).(domain.Actor)
	return a
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
