package server

import (
	"log"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/tallyhq/tally/internal/store"
)

var validate = validator.New()

type Server struct {
	store  *store.Store
	router chi.Router
	addr   string
}

func New(st *store.Store, addr string) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key"},
	}))

	s := &Server{store: st, router: r, addr: addr}

	r.Route("/api/v1/ledgers/{ledger}", func(r chi.Router) {
		// Transactions
		r.Post("/transactions", s.createTransaction)
		r.Get("/transactions", s.listTransactions)
		r.Get("/transactions/{id}", s.getTransaction)
		r.Post("/transactions/{id}/reverse", s.reverseTransaction)

		// Accounts
		r.Get("/accounts", s.listAccounts)
		r.Get("/accounts/{type}/balance", s.getAccountBalance)
		r.Get("/accounts/{type}/{entity}/balance", s.getAccountBalance)
		r.Get("/accounts/{type}/entries", s.getAccountActivity)
		r.Get("/accounts/{type}/{entity}/entries", s.getAccountActivity)
		r.Post("/accounts/{type}/{entity}/hold", s.holdFunds)
		r.Post("/accounts/{type}/{entity}/release", s.releaseHold)
		r.Post("/accounts/{type}/metadata", s.setAccountMetadata)
		r.Post("/accounts/{type}/{entity}/metadata", s.setAccountMetadata)

		// Invoices
		r.Post("/invoices", s.createInvoice)
		r.Get("/invoices", s.listInvoices)
		r.Get("/invoices/{id}", s.getInvoice)
		r.Post("/invoices/{id}/send", s.sendInvoice)
		r.Post("/invoices/{id}/payments", s.recordPayment)
		r.Post("/invoices/{id}/void", s.voidInvoice)

		// Periods
		r.Get("/periods", s.listPeriods)
		r.Get("/periods/{year}/{month}", s.getPeriod)
		r.Post("/periods/{year}/{month}/close", s.closePeriod)

		// Reports (read-only)
		r.Get("/reports/trial-balance", s.trialBalance)
		r.Get("/reports/balance-sheet", s.balanceSheet)
		r.Get("/reports/ar-aging", s.arAging)

		// Audit trail
		r.Get("/audit", s.listAudit)
	})

	return s
}

func (s *Server) ListenAndServe() error {
	log.Printf("tally server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, s.router)
}

func (s *Server) Serve(ln net.Listener) error {
	log.Printf("tally server listening on %s", ln.Addr())
	return http.Serve(ln, s.router)
}

func (s *Server) Handler() http.Handler {
	return s.router
}
