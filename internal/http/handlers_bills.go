package http

import (
	"context"
	"net/http"

	"payback/internal/core"
	applog "payback/internal/log"
	"payback/internal/services"
)

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("month") == "" || q.Get("year") == "" {
		BadRequestError("Month and year are required").Write(w)
		return
	}
	period, err := ParsePeriod(q)
	if err != nil {
		writeError(w, r, "get_bill", err)
		return
	}

	bill, err := s.ledger.GetBill(r.Context(), period)
	if err != nil {
		writeError(w, r, "get_bill", err)
		return
	}
	// A month without a bill encodes as null, not an error.
	NewJSONResponse().Body(bill).Write(w)
}

func (s *Server) handleSetBill(w http.ResponseWriter, r *http.Request) {
	form, err := ParseUploadForm(w, r, "receipt", s.maxUpload)
	if err != nil {
		writeError(w, r, "set_bill", err)
		return
	}

	cmd := services.SetBillCommand{Receipt: form.Receipt}
	month, err := form.Int("month")
	if err != nil {
		writeError(w, r, "set_bill", err)
		return
	}
	year, err := form.Int("year")
	if err != nil {
		writeError(w, r, "set_bill", err)
		return
	}
	cmd.Month, cmd.Year = int(month), int(year)
	if cmd.PayerID, err = form.Int("payer_id"); err != nil {
		writeError(w, r, "set_bill", err)
		return
	}
	if cmd.TotalAmount, err = form.Money("total_amount"); err != nil {
		writeError(w, r, "set_bill", err)
		return
	}

	bill, err := s.ledger.SetBill(r.Context(), cmd)
	if err != nil {
		writeError(w, r, "set_bill", err)
		return
	}
	s.mutated("set_bill")
	NewJSONResponse().Body(SuccessBody{Success: true, ID: bill.ID, Bill: &bill}).Write(w)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	form, err := ParseUploadForm(w, r, "receipt", s.maxUpload)
	if err != nil {
		writeError(w, r, "record_payment", err)
		return
	}

	cmd := services.RecordPaymentCommand{Receipt: form.Receipt}
	if cmd.BillID, err = form.Int("bill_id"); err != nil {
		writeError(w, r, "record_payment", err)
		return
	}
	if cmd.MemberID, err = form.Int("member_id"); err != nil {
		writeError(w, r, "record_payment", err)
		return
	}
	if cmd.Amount, err = form.Money("amount"); err != nil {
		writeError(w, r, "record_payment", err)
		return
	}

	payment, err := s.ledger.RecordPayment(r.Context(), cmd)
	if err != nil {
		writeError(w, r, "record_payment", err)
		return
	}
	s.mutated("record_payment")
	NewJSONResponse().Body(SuccessBody{Success: true, ID: payment.ID, Payment: &payment}).Write(w)
}

func (s *Server) handleMarkUnpaid(w http.ResponseWriter, r *http.Request) {
	billID, err := pathID(r, "bill_id")
	if err != nil {
		writeError(w, r, "mark_unpaid", err)
		return
	}
	memberID, err := pathID(r, "member_id")
	if err != nil {
		writeError(w, r, "mark_unpaid", err)
		return
	}
	if err := s.ledger.MarkUnpaid(r.Context(), billID, memberID); err != nil {
		writeError(w, r, "mark_unpaid", err)
		return
	}
	s.mutated("mark_unpaid")
	NewJSONResponse().Body(SuccessBody{Success: true}).Write(w)
}

// handleSummary serves the month view; month and year default to the current month.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	period, err := ParsePeriodOrNow(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, "summary", err)
		return
	}
	view, err := s.monthView(r.Context(), period)
	if err != nil {
		writeError(w, r, "summary", err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) monthView(ctx context.Context, period core.Period) (core.MonthView, error) {
	if view, ok := s.views.Get(period); ok {
		applog.FromContext(ctx).DebugContext(ctx, "Month view cache hit", "period", period.String())
		return view, nil
	}

	gen := s.generation.Load()
	view, err := s.ledger.MonthView(ctx, period)
	if err != nil {
		return core.MonthView{}, err
	}
	if s.generation.Load() == gen {
		s.views.Set(period, view)
	}
	return view, nil
}
