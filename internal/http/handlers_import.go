package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"livrocaixa/internal/core"
	"livrocaixa/internal/csvimport"
	"livrocaixa/internal/services"
)

// maxImportBytes bounds an uploaded statement file.
const maxImportBytes = 5 << 20

type defaultsRequest struct {
	AccountID         string `json:"account_id"`
	IncomeCategoryID  string `json:"income_category_id"`
	ExpenseCategoryID string `json:"expense_category_id"`
	ExpenseStatus     string `json:"expense_status"`
}

func (d defaultsRequest) defaults() csvimport.Defaults {
	return csvimport.Defaults{
		AccountID:         strings.TrimSpace(d.AccountID),
		IncomeCategoryID:  strings.TrimSpace(d.IncomeCategoryID),
		ExpenseCategoryID: strings.TrimSpace(d.ExpenseCategoryID),
		ExpenseStatus:     core.NormalizeStatus(d.ExpenseStatus),
	}
}

type rowEditRequest struct {
	Line          int     `json:"line"`
	Include       *bool   `json:"include,omitempty"`
	AccountID     *string `json:"account_id,omitempty"`
	CategoryID    *string `json:"category_id,omitempty"`
	ExpenseStatus *string `json:"expense_status,omitempty"`
}

func (e rowEditRequest) edit() csvimport.RowEdit {
	out := csvimport.RowEdit{Include: e.Include, AccountID: e.AccountID, CategoryID: e.CategoryID}
	if e.ExpenseStatus != nil {
		st := core.NormalizeStatus(*e.ExpenseStatus)
		out.Status = &st
	}
	return out
}

// importRequest carries the file text with the choices made in the review
// table. The server always re-parses the text, so a caller cannot submit
// rows the parser would reject.
type importRequest struct {
	Text          string           `json:"text"`
	Defaults      defaultsRequest  `json:"defaults"`
	ApplyDefaults bool             `json:"apply_defaults"`
	Edits         []rowEditRequest `json:"edits"`
}

// readImport accepts either a JSON body or a multipart form with a "file"
// part and the defaults as plain fields.
func readImport(w http.ResponseWriter, r *http.Request) (importRequest, error) {
	var req importRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := DecodeJSON(w, r, &req); err != nil {
			return req, err
		}
		return req, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes+1<<20)
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		return req, &core.ValidationError{Field: "file", Reason: "Arquivo inválido ou grande demais.", Err: err}
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return req, &core.ValidationError{Field: "file", Reason: "Selecione um arquivo CSV.", Err: err}
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxImportBytes+1))
	if err != nil {
		return req, &core.ValidationError{Field: "file", Reason: "Falha ao ler o arquivo.", Err: err}
	}
	if len(raw) > maxImportBytes {
		return req, &core.ValidationError{Field: "file", Reason: fmt.Sprintf("Arquivo maior que %d MB.", maxImportBytes>>20)}
	}
	if req.Text, err = csvimport.DecodeText(raw); err != nil {
		return req, &core.ValidationError{Field: "file", Reason: "Codificação do arquivo não reconhecida.", Err: err}
	}
	req.Defaults = defaultsRequest{
		AccountID:         r.FormValue("account_id"),
		IncomeCategoryID:  r.FormValue("income_category_id"),
		ExpenseCategoryID: r.FormValue("expense_category_id"),
		ExpenseStatus:     r.FormValue("expense_status"),
	}
	req.ApplyDefaults, _ = strconv.ParseBool(r.FormValue("apply_defaults"))
	return req, nil
}

// review parses the text and replays the reviewer's choices over the rows.
func (s *Server) review(req importRequest) (services.Preview, error) {
	d := req.Defaults.defaults()
	p, err := s.deps.Imports.Preview(req.Text, d)
	if err != nil {
		return services.Preview{}, err
	}
	if req.ApplyDefaults {
		csvimport.ApplyDefaults(p.Rows, d)
	}

	byLine := make(map[int]int, len(p.Rows))
	for i, row := range p.Rows {
		byLine[row.Line] = i
	}
	for _, e := range req.Edits {
		i, ok := byLine[e.Line]
		if !ok {
			return services.Preview{}, &core.ValidationError{Field: "edits", Reason: fmt.Sprintf("linha %d não existe no arquivo", e.Line)}
		}
		if err := e.edit().Apply(&p.Rows[i]); err != nil {
			return services.Preview{}, &core.ValidationError{Field: "edits", Reason: fmt.Sprintf("linha %d: %v", e.Line, err), Err: err}
		}
	}
	p.Stats = csvimport.Summarize(p.Rows)
	return p, nil
}

func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	req, err := readImport(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.review(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rows := make([]parsedRowJSON, 0, len(p.Rows))
	for _, row := range p.Rows {
		rows = append(rows, parsedRowView(row))
	}
	NewResponse().JSON(map[string]any{
		"rows":      rows,
		"stats":     statsView(p.Stats),
		"projected": effectView(p.Projected()),
	}).Write(w)
}

func (s *Server) handleImportCommit(w http.ResponseWriter, r *http.Request) {
	req, err := readImport(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.review(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Imports.Commit(r.Context(), p.Rows)
	atomic.AddInt64(&s.appMetrics.imported, int64(len(res.IDs)))
	if err != nil {
		var storeErr *core.StoreError
		if errors.As(err, &storeErr) && len(res.IDs) > 0 {
			// Part of the file is in the ledger; the client must know which.
			NewResponse().Status(http.StatusBadGateway).JSON(map[string]any{
				"error":       storeErr.Error(),
				"kind":        KindStore,
				"batch_index": storeErr.BatchIndex,
				"batch_total": storeErr.BatchTotal,
				"committed":   storeErr.Committed,
				"ids":         res.IDs,
				"effect":      effectView(res.Effect),
			}).Write(w)
			return
		}
		s.writeError(w, r, err)
		return
	}

	NewResponse().Status(http.StatusCreated).JSON(map[string]any{
		"ids":     nonNil(res.IDs),
		"batches": res.Batches,
		"effect":  effectView(res.Effect),
	}).Write(w)
}
