// Package notify delivers student access codes to guardians and teachers by e-mail.
package notify

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/evasensorial/eva/core"
)

const (
	RoleGuardian = "familiar"
	RoleTeacher  = "profesor"

	accessCodeTemplate = "access_code"
)

type (
	Recipient struct {
		Email string
		Name  string
		Role  string // RoleGuardian (default) or RoleTeacher
	}

	// AccessCodeNotice asks for one e-mail per recipient carrying the student's access code.
	AccessCodeNotice struct {
		Recipients  []Recipient
		StudentName string
		Code        string
	}

	Failure struct {
		To    string `json:"to"`
		Error string `json:"error"`
	}

	// Report holds the per-recipient outcome of a dispatch, in recipient order.
	Report struct {
		Sent   []string  `json:"enviados"`
		Failed []Failure `json:"fallidos"`
	}

	accessCodeData struct {
		Heading       string
		RecipientName string
		Intro         string
		StudentName   string
		Code          string
		PortalURL     string
		ButtonText    string
	}

	Dispatcher struct {
		conf    *core.Config
		mailSvc core.EmailService
		logger  core.Logger
		wg      sync.WaitGroup
	}
)

func NewDispatcher(conf *core.Config, mailSvc core.EmailService, logger core.Logger) *Dispatcher {
	return &Dispatcher{conf: conf, mailSvc: mailSvc, logger: logger}
}

// PortalURL is the link guardians and teachers follow to register with code.
func (d *Dispatcher) PortalURL(code string) string {
	sep := "?"
	if strings.Contains(d.conf.PortalBaseURL, "?") {
		sep = "&"
	}
	return d.conf.PortalBaseURL + sep + "code=" + url.QueryEscape(code)
}

// Dispatch sends the notice to every (deduplicated) recipient, at most conf.Mail.Concurrency at a time.
// It never fails as a whole: each recipient ends up in either Report.Sent or Report.Failed.
func (d *Dispatcher) Dispatch(ctx context.Context, notice AccessCodeNotice) Report {
	recipients := dedupe(notice.Recipients)
	errs := make([]error, len(recipients))

	var g errgroup.Group
	limit := d.conf.Mail.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, rcpt := range recipients {
		i, rcpt := i, rcpt
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = d.mailSvc.Send(ctx, d.accessCodeMessage(notice, rcpt))
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Sent: make([]string, 0, len(recipients)), Failed: make([]Failure, 0)}
	for i, rcpt := range recipients {
		if errs[i] != nil {
			report.Failed = append(report.Failed, Failure{To: rcpt.Email, Error: errs[i].Error()})
			continue
		}
		report.Sent = append(report.Sent, rcpt.Email)
	}
	return report
}

// DispatchAsync runs Dispatch detached from the caller, bounded by conf.Mail.Timeout, and logs the outcome.
func (d *Dispatcher) DispatchAsync(notice AccessCodeNotice) {
	if len(notice.Recipients) == 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.conf.Mail.Timeout)
		defer cancel()

		report := d.Dispatch(ctx, notice)
		for _, f := range report.Failed {
			d.logger.Error(fmt.Sprintf("sending access code to %s: %s", f.To, f.Error), notice.Code)
		}
		d.logger.Info(fmt.Sprintf("access code %s sent to %d/%d recipients",
			notice.Code, len(report.Sent), len(report.Sent)+len(report.Failed)))
	}()
}

// Wait blocks until every pending DispatchAsync has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) accessCodeMessage(notice AccessCodeNotice, rcpt Recipient) *core.EmailMessage {
	heading, subjPrefix, intro := "Invitación para acudiente", "Acudiente",
		"Has sido invitado a acompañar el proceso terapéutico del estudiante."
	if rcpt.Role == RoleTeacher {
		heading, subjPrefix, intro = "Invitación para docente", "Docente",
			"Has sido invitado a registrar observaciones sobre el estudiante."
	}
	studentName := notice.StudentName
	if studentName == "" {
		studentName = "estudiante"
	}

	return &core.EmailMessage{
		To:           []mail.Address{{Name: rcpt.Name, Address: rcpt.Email}},
		Subject:      fmt.Sprintf("%s • Código de acceso para %s", subjPrefix, studentName),
		TemplateName: accessCodeTemplate,
		TemplateData: accessCodeData{
			Heading:       heading,
			RecipientName: rcpt.Name,
			Intro:         intro,
			StudentName:   studentName,
			Code:          notice.Code,
			PortalURL:     d.PortalURL(notice.Code),
			ButtonText:    "Abrir portal",
		},
	}
}

// dedupe drops empty and repeated addresses (case-insensitive), keeping the first occurrence.
func dedupe(recipients []Recipient) []Recipient {
	seen := make(map[string]bool, len(recipients))
	out := make([]Recipient, 0, len(recipients))
	for _, r := range recipients {
		r.Email = core.CleanString(r.Email, true /* lower */)
		if r.Email == "" || seen[r.Email] {
			continue
		}
		seen[r.Email] = true
		out = append(out, r)
	}
	return out
}
