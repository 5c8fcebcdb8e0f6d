package core

const (
	StatusPaid    = "paid"
	StatusPending = "pending"
)

// MemberStatus is one row of the month view.
type MemberStatus struct {
	Member        Member         `json:"member"`
	IsPayer       bool           `json:"is_payer"`
	IsPaid        bool           `json:"is_paid"`
	Status        string         `json:"status"`
	Payment       *PaymentDetail `json:"payment,omitempty"`
	DisplayAmount *Money         `json:"display_amount"`
}

// MonthView is the read-side projection of members and the bill of a month.
// It holds no state of its own and is rebuilt on every read.
type MonthView struct {
	Period      Period         `json:"period"`
	Bill        *BillDetail    `json:"bill"`
	SplitAmount *Money         `json:"split_amount"`
	Members     []MemberStatus `json:"members"`
	Collected   Money          `json:"collected"`
	Outstanding Money          `json:"outstanding"`
}

// BuildMonthView derives paid/pending status and the even split for every member.
// bill may be nil when nothing was recorded for the period.
func BuildMonthView(period Period, members []Member, bill *BillDetail) MonthView {
	view := MonthView{
		Period:  period,
		Bill:    bill,
		Members: make([]MemberStatus, 0, len(members)),
	}

	if bill == nil {
		for _, m := range members {
			view.Members = append(view.Members, MemberStatus{Member: m, Status: StatusPending})
		}
		return view
	}

	split := bill.TotalAmount.Split(len(members))
	view.SplitAmount = &split

	payments := make(map[int64]*PaymentDetail, len(bill.Payments))
	for i := range bill.Payments {
		p := &bill.Payments[i]
		payments[p.MemberID] = p
		view.Collected.Cents += p.Amount.Cents
	}

	for _, m := range members {
		st := MemberStatus{Member: m, IsPayer: m.ID == bill.PayerID}
		st.Payment = payments[m.ID]
		st.IsPaid = st.IsPayer || st.Payment != nil

		if !st.IsPayer {
			amount := split
			if st.Payment != nil {
				amount = st.Payment.Amount
			}
			st.DisplayAmount = &amount
		}

		if st.IsPaid {
			st.Status = StatusPaid
		} else {
			st.Status = StatusPending
			view.Outstanding.Cents += split.Cents
		}
		view.Members = append(view.Members, st)
	}

	return view
}
