package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fincal/internal/core"
)

// maxBodyBytes bounds request bodies. Entries are a handful of short fields.
const maxBodyBytes = 64 << 10

// ErrMalformedBody marks a body that is neither valid JSON nor form data.
var ErrMalformedBody = errors.New("malformed request body")

var errInvalidBool = errors.New("must be true or false")

// RequestBodyParser reads a JSON object or a form-encoded body once and
// exposes its fields as trimmed strings.
type RequestBodyParser struct {
	jsonData map[string]any
	formData url.Values
}

// ParseRequestBody reads and decodes the body of r. An empty body yields a
// parser with no fields.
func ParseRequestBody(r *http.Request) (*RequestBodyParser, error) {
	p := &RequestBodyParser{}
	if r.Body == nil {
		p.formData = url.Values{}
		return p, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedBody, maxBodyBytes)
	}
	body = bytes.TrimSpace(body)

	switch {
	case len(body) == 0:
		p.formData = url.Values{}
	case body[0] == '{' || strings.HasPrefix(r.Header.Get("Content-Type"), "application/json"):
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
	default:
		if p.formData, err = url.ParseQuery(string(body)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
	}
	return p, nil
}

// Has reports whether key is present. JSON null counts as absent.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		v, ok := p.jsonData[key]
		return ok && v != nil
	}
	_, ok := p.formData[key]
	return ok
}

// Get returns the value of key, trimmed and stripped of control characters.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		return sanitizeInput(stringValue(p.jsonData[key]))
	}
	return sanitizeInput(p.formData.Get(key))
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// Entry reads the date, amount and description of a new bill or income.
// Missing or unparsable date and amount are validation errors.
func (p *RequestBodyParser) Entry() (core.Date, core.Money, string, error) {
	date, err := p.date()
	if err != nil {
		return core.Date{}, core.Money{}, "", err
	}
	amount, err := p.amount()
	if err != nil {
		return core.Date{}, core.Money{}, "", err
	}
	return date, amount, p.Get("description"), nil
}

// BillPatch reads the fields present in the body. Absent fields stay nil.
func (p *RequestBodyParser) BillPatch() (core.BillPatch, error) {
	var patch core.BillPatch
	if err := p.entryPatch(&patch.Date, &patch.Amount, &patch.Description); err != nil {
		return core.BillPatch{}, err
	}
	if p.Has("isPaid") {
		paid, err := strconv.ParseBool(p.Get("isPaid"))
		if err != nil {
			return core.BillPatch{}, &core.ValidationError{Field: "isPaid", Err: errInvalidBool}
		}
		patch.IsPaid = &paid
	}
	return patch, nil
}

// IncomePatch reads the fields present in the body. Absent fields stay nil.
func (p *RequestBodyParser) IncomePatch() (core.IncomePatch, error) {
	var patch core.IncomePatch
	if err := p.entryPatch(&patch.Date, &patch.Amount, &patch.Description); err != nil {
		return core.IncomePatch{}, err
	}
	return patch, nil
}

func (p *RequestBodyParser) entryPatch(date **core.Date, amount **core.Money, desc **string) error {
	if p.Has("date") {
		d, err := p.date()
		if err != nil {
			return err
		}
		*date = &d
	}
	if p.Has("amount") {
		m, err := p.amount()
		if err != nil {
			return err
		}
		*amount = &m
	}
	if p.Has("description") {
		s := p.Get("description")
		*desc = &s
	}
	return nil
}

func (p *RequestBodyParser) date() (core.Date, error) {
	d, err := core.ParseDate(p.Get("date"))
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: "date", Err: core.ErrInvalidDate}
	}
	return d, nil
}

func (p *RequestBodyParser) amount() (core.Money, error) {
	m, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: "amount", Err: err}
	}
	return m, nil
}

// ParseMonthQuery reads ?month=YYYY-MM, falling back to def when absent.
func ParseMonthQuery(query url.Values, def core.Month) (core.Month, error) {
	v := strings.TrimSpace(query.Get("month"))
	if v == "" {
		return def, nil
	}
	return core.ParseMonth(v)
}

// ParseBoolQuery reads a boolean flag. Absent or unparsable means false.
func ParseBoolQuery(query url.Values, key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(query.Get(key)))
	return b
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
