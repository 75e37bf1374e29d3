package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"fincal/internal/core"
	"fincal/internal/log"
)

// JSONResponse provides a fluent API for building JSON responses.
type JSONResponse struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponse {
	return &JSONResponse{statusCode: http.StatusOK, headers: make(map[string]string)}
}

func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body sends no
// content.
func (b *JSONResponse) Body(v any) *JSONResponse {
	b.body = v
	return b
}

func (b *JSONResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponse {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponse {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponse {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *JSONResponse {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// MethodNotAllowedError creates a 405 listing the allowed methods.
func MethodNotAllowedError(allowedMethods ...string) *JSONResponse {
	resp := ErrorResponse(http.StatusMethodNotAllowed, "method not allowed")
	if len(allowedMethods) > 0 {
		resp.Header("Allow", strings.Join(allowedMethods, ", "))
	}
	return resp
}

func TooManyRequestsError() *JSONResponse {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

// ValidationErrorResponse creates a 422 naming the offending field.
func ValidationErrorResponse(ve *core.ValidationError) *JSONResponse {
	return NewJSONResponse().
		Status(http.StatusUnprocessableEntity).
		Body(errorBody{Error: ve.Err.Error(), Field: ve.Field})
}

// ResponseForError maps service and parsing errors to responses. Unknown
// errors become a 500 without internal detail.
func ResponseForError(err error) *JSONResponse {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return ValidationErrorResponse(ve)
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, ErrMalformedBody), errors.Is(err, core.ErrInvalidMonth):
		return BadRequestError(err.Error())
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyDescription), errors.Is(err, core.ErrDescriptionTooLong):
		return ErrorResponse(http.StatusUnprocessableEntity, err.Error())
	default:
		return InternalServerError("internal error")
	}
}

// writeError logs the failure at a level matching its status and writes
// the mapped response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ResponseForError(err)
	log.FromContext(r.Context()).Log(r.Context(), log.LevelForStatus(resp.statusCode), "Request failed",
		log.FieldError, err.Error(), log.FieldStatusCode, resp.statusCode)
	resp.Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}

// Wire representations. Money encodes as a JSON number with two decimals
// and Date as "YYYY-MM-DD".

type billJSON struct {
	ID          string     `json:"id"`
	Date        core.Date  `json:"date"`
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
	IsPaid      bool       `json:"isPaid"`
}

type incomeJSON struct {
	ID          string     `json:"id"`
	Date        core.Date  `json:"date"`
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
}

type summaryJSON struct {
	TotalIncome core.Money `json:"totalIncome"`
	TotalBills  core.Money `json:"totalBills"`
	TotalPaid   core.Money `json:"totalPaid"`
	TotalUnpaid core.Money `json:"totalUnpaid"`
	Balance     core.Money `json:"balance"`
}

type calendarDayJSON struct {
	Date    core.Date    `json:"date"`
	InMonth bool         `json:"inMonth"`
	IsToday bool         `json:"isToday"`
	Bills   []billJSON   `json:"bills"`
	Income  []incomeJSON `json:"income"`
}

type calendarJSON struct {
	Month string            `json:"month"`
	Grid  bool              `json:"grid"`
	Days  []calendarDayJSON `json:"days"`
}

type monthlyBillsJSON struct {
	Month       string     `json:"month"`
	Bills       []billJSON `json:"bills"`
	TotalUnpaid core.Money `json:"totalUnpaid"`
}

func toBillJSON(b core.Bill) billJSON {
	return billJSON{ID: b.ID, Date: b.Date, Amount: b.Amount, Description: b.Description, IsPaid: b.IsPaid}
}

func toIncomeJSON(i core.Income) incomeJSON {
	return incomeJSON{ID: i.ID, Date: i.Date, Amount: i.Amount, Description: i.Description}
}

func toBillsJSON(bills []core.Bill) []billJSON {
	out := make([]billJSON, len(bills))
	for i, b := range bills {
		out[i] = toBillJSON(b)
	}
	return out
}

func toIncomesJSON(income []core.Income) []incomeJSON {
	out := make([]incomeJSON, len(income))
	for i, inc := range income {
		out[i] = toIncomeJSON(inc)
	}
	return out
}

func toSummaryJSON(s core.Summary) summaryJSON {
	return summaryJSON{
		TotalIncome: s.TotalIncome,
		TotalBills:  s.TotalBills,
		TotalPaid:   s.TotalPaid,
		TotalUnpaid: s.TotalUnpaid,
		Balance:     s.Balance,
	}
}

func toCalendarJSON(m core.Month, grid bool, days []core.CalendarDay) calendarJSON {
	out := calendarJSON{Month: m.String(), Grid: grid, Days: make([]calendarDayJSON, len(days))}
	for i, d := range days {
		out.Days[i] = calendarDayJSON{
			Date:    d.Date,
			InMonth: d.InMonth,
			IsToday: d.IsToday,
			Bills:   toBillsJSON(d.Bills),
			Income:  toIncomesJSON(d.Income),
		}
	}
	return out
}

func toMonthlyBillsJSON(mb core.MonthlyBills) monthlyBillsJSON {
	return monthlyBillsJSON{Month: mb.Month.String(), Bills: toBillsJSON(mb.Bills), TotalUnpaid: mb.TotalUnpaid}
}
