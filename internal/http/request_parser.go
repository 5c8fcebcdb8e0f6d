// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// JSON or form bodies, multipart uploads and the month/year query pair.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"payback/internal/core"
	"payback/internal/receipts"
)

// multipartMemory is how much of a multipart body is held in memory before spilling to disk.
const multipartMemory = 1 << 20

// formOverhead allows for the non-file fields around a receipt.
const formOverhead = 64 << 10

// ParsePeriod extracts a required month/year pair from query parameters.
func ParsePeriod(query url.Values) (core.Period, error) {
	month := strings.TrimSpace(query.Get("month"))
	year := strings.TrimSpace(query.Get("year"))
	if month == "" || year == "" {
		return core.Period{}, fmt.Errorf("%w: month and year are required", core.ErrValidation)
	}
	return periodFrom(month, year)
}

// ParsePeriodOrNow is ParsePeriod with the current month as default for absent values.
func ParsePeriodOrNow(query url.Values, now time.Time) (core.Period, error) {
	p := core.NewPeriod(now)
	month := strings.TrimSpace(query.Get("month"))
	year := strings.TrimSpace(query.Get("year"))
	if month == "" {
		month = strconv.Itoa(p.Month)
	}
	if year == "" {
		year = strconv.Itoa(p.Year)
	}
	return periodFrom(month, year)
}

func periodFrom(month, year string) (core.Period, error) {
	m, err := strconv.Atoi(month)
	if err != nil {
		return core.Period{}, fmt.Errorf("%w: month must be a number", core.ErrValidation)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return core.Period{}, fmt.Errorf("%w: year must be a number", core.ErrValidation)
	}
	p := core.Period{Month: m, Year: y}
	if err := p.Validate(); err != nil {
		return core.Period{}, fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	return p, nil
}

// pathID reads a positive integer path value such as {id}.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", core.ErrValidation, name)
	}
	return id, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once, up to limit bytes.
func NewRequestBodyParser(r *http.Request, limit int64) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, limit+1))
	if p.err == nil && int64(len(p.body)) > limit {
		p.err = fmt.Errorf("%w: request body exceeds %d bytes", core.ErrPayloadTooLarge, limit)
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: malformed JSON body", core.ErrValidation)
			return p.err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(p.body))
	if p.err != nil {
		p.err = fmt.Errorf("%w: malformed form body", core.ErrValidation)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// MultipartForm is a parsed upload form: text fields plus at most one receipt.
type MultipartForm struct {
	values  url.Values
	Receipt *receipts.Upload
}

// ParseUploadForm reads a multipart (or urlencoded) form whose optional file
// field is named receiptField. Bodies beyond maxFile plus a small overhead
// are cut off and reported as too large.
func ParseUploadForm(w http.ResponseWriter, r *http.Request, receiptField string, maxFile int64) (*MultipartForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFile+formOverhead)

	err := r.ParseMultipartForm(multipartMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: upload exceeds %d bytes", core.ErrPayloadTooLarge, maxFile)
		}
		return nil, fmt.Errorf("%w: malformed form: %v", core.ErrValidation, err)
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	form := &MultipartForm{values: r.PostForm}
	if form.values == nil {
		form.values = url.Values{}
	}

	file, header, err := r.FormFile(receiptField)
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return form, nil
	case err != nil:
		return nil, fmt.Errorf("%w: read %s: %v", core.ErrValidation, receiptField, err)
	}
	defer file.Close()

	upload, err := readUpload(file, header, maxFile)
	if err != nil {
		return nil, err
	}
	form.Receipt = upload
	return form, nil
}

// readUpload buffers the file, reading one byte past the limit so oversize
// files are detected without reading them whole.
func readUpload(file multipart.File, header *multipart.FileHeader, maxFile int64) (*receipts.Upload, error) {
	data, err := io.ReadAll(io.LimitReader(file, maxFile+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %v", core.ErrIO, err)
	}
	return &receipts.Upload{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	}, nil
}

// Get returns a trimmed text field.
func (f *MultipartForm) Get(key string) string {
	return sanitizeInput(f.values.Get(key))
}

// Int returns a numeric field; absent fields are zero so validation reports them as required.
func (f *MultipartForm) Int(key string) (int64, error) {
	v := f.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", core.ErrValidation, key)
	}
	return n, nil
}

// Money returns an amount field; absent amounts are zero.
func (f *MultipartForm) Money(key string) (core.Money, error) {
	v := f.Get(key)
	if v == "" {
		return core.Money{}, nil
	}
	m, err := core.ParseMoney(v)
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: %s must be a positive amount", core.ErrValidation, key)
	}
	return m, nil
}
