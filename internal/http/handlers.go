package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady checks the storage backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSummaryJSON(s.svc.Summary(r.Context())))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"balance": s.svc.Balance(r.Context())})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	m, err := ParseMonthQuery(q, s.svc.CurrentMonth())
	if err != nil {
		writeError(w, r, err)
		return
	}
	grid := ParseBoolQuery(q, "grid")
	days, err := s.svc.Calendar(r.Context(), m, grid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCalendarJSON(m, grid, days))
}

// Bills

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toBillsJSON(s.svc.ListBills(r.Context())))
}

func (s *Server) handleMonthlyBills(w http.ResponseWriter, r *http.Request) {
	m, err := ParseMonthQuery(r.URL.Query(), s.svc.CurrentMonth())
	if err != nil {
		writeError(w, r, err)
		return
	}
	mb, err := s.svc.MonthlyBills(r.Context(), m)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlyBillsJSON(mb))
}

func (s *Server) handleAddBill(w http.ResponseWriter, r *http.Request) {
	p, err := ParseRequestBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, amount, desc, err := p.Entry()
	if err != nil {
		writeError(w, r, err)
		return
	}
	bill, err := s.svc.AddBill(r.Context(), date, amount, desc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/bills/"+bill.ID).
		Body(toBillJSON(bill)).
		Write(w)
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := s.svc.GetBill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillJSON(bill))
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	p, err := ParseRequestBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := p.BillPatch()
	if err != nil {
		writeError(w, r, err)
		return
	}
	bill, err := s.svc.UpdateBill(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillJSON(bill))
}

func (s *Server) handleToggleBill(w http.ResponseWriter, r *http.Request) {
	bill, err := s.svc.ToggleBillPaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillJSON(bill))
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteBill(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Income

func (s *Server) handleListIncome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toIncomesJSON(s.svc.ListIncome(r.Context())))
}

func (s *Server) handleAddIncome(w http.ResponseWriter, r *http.Request) {
	p, err := ParseRequestBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, amount, desc, err := p.Entry()
	if err != nil {
		writeError(w, r, err)
		return
	}
	inc, err := s.svc.AddIncome(r.Context(), date, amount, desc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/income/"+inc.ID).
		Body(toIncomeJSON(inc)).
		Write(w)
}

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	inc, err := s.svc.GetIncome(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncomeJSON(inc))
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	p, err := ParseRequestBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := p.IncomePatch()
	if err != nil {
		writeError(w, r, err)
		return
	}
	inc, err := s.svc.UpdateIncome(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncomeJSON(inc))
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteIncome(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
