// Package registration issues tokens to guardians and teachers and manages their draft answers until finalize.
package registration

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/answer"
	"github.com/evasensorial/eva/core/student"
)

const (
	tokenBytes    = 24
	tokenMetadata = "registro+temp"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrTokenNotFound   = core.NewNotFoundError("Token inválido o expirado")
	ErrNoActiveToken   = core.NewNotFoundError("No hay token activo para esa cédula")
	ErrStudentNotFound = core.NewNotFoundError("Estudiante no encontrado por codigo_acceso")
	ErrInvalidCode     = core.NewNotFoundError("Código inválido")
	ErrNoAnswers       = errors.New("No hay respuestas para guardar")
)

type (
	Repository interface {
		// UpsertParticipant inserts p or updates the row with the same document.
		// Empty fields of p never overwrite stored values.
		UpsertParticipant(ctx context.Context, p Participant, exec ...core.DBExecutor) (Participant, error)
		// UpsertParticipantByEmail is UpsertParticipant keyed by (case-insensitive) e-mail instead of document.
		UpsertParticipantByEmail(ctx context.Context, p Participant, exec ...core.DBExecutor) (Participant, error)
		GetParticipant(ctx context.Context, typ string, id int, exec ...core.DBExecutor) (Participant, error)
		PatchParticipant(ctx context.Context, typ string, id int, patch ParticipantPatch, exec ...core.DBExecutor) error
		// LinkParticipant is a no-op when the link already exists.
		LinkParticipant(ctx context.Context, studentID int, p Participant, exec ...core.DBExecutor) error

		CreateToken(ctx context.Context, t AccessToken, metadata map[string]interface{}, exec ...core.DBExecutor) error
		// GetActiveToken returns ErrTokenNotFound unless token is active and unexpired.
		GetActiveToken(ctx context.Context, token string, exec ...core.DBExecutor) (AccessToken, error)
		// GetActiveTokenForUpdate is GetActiveToken locking the row until the transaction ends.
		GetActiveTokenForUpdate(ctx context.Context, token string, exec ...core.DBExecutor) (AccessToken, error)
		// LatestActiveToken returns the active token expiring last, ErrNoActiveToken if none.
		LatestActiveToken(ctx context.Context, filter TokenFilter, exec ...core.DBExecutor) (AccessToken, error)
		DeactivateTokens(ctx context.Context, filter TokenFilter, exec ...core.DBExecutor) error
		DeactivateToken(ctx context.Context, token string, exec ...core.DBExecutor) error

		// MergeDraftProfile shallow-merges data into the token's draft profile and returns the result.
		MergeDraftProfile(ctx context.Context, token string, data map[string]interface{}, exec ...core.DBExecutor) (map[string]interface{}, error)
		// GetDraftProfile returns an empty map when nothing was saved yet.
		GetDraftProfile(ctx context.Context, token string, exec ...core.DBExecutor) (map[string]interface{}, error)
		UpsertDraftAnswer(ctx context.Context, a DraftAnswer, exec ...core.DBExecutor) error
		// QueryDraftAnswers returns the token's drafts, most recently updated first.
		QueryDraftAnswers(ctx context.Context, token string, exec ...core.DBExecutor) ([]DraftAnswer, error)
		DeleteDrafts(ctx context.Context, token string, exec ...core.DBExecutor) error
	}

	StudentFinder interface {
		GetStudent(ctx context.Context, filter student.GetFilter, exec ...core.DBExecutor) (student.Student, error)
	}

	AnswerWriter interface {
		CreateAnswers(ctx context.Context, answers []answer.Answer, exec ...core.DBExecutor) (int, error)
	}

	// TokenFilter selects active tokens by document, optionally narrowed to one student.
	TokenFilter struct {
		Document  string
		StudentID int
	}

	Service struct {
		repo          Repository
		students      StudentFinder
		answers       AnswerWriter
		tx            core.Transactor
		tokenTTL      time.Duration
		singleSession bool
	}
)

func NewService(conf *core.Config, repo Repository, students StudentFinder, answers AnswerWriter, tx core.Transactor) *Service {
	ttl := conf.Registration.TokenTTL
	if ttl <= 0 {
		ttl = 1440 * time.Minute
	}
	return &Service{
		repo:          repo,
		students:      students,
		answers:       answers,
		tx:            tx,
		tokenTTL:      ttl,
		singleSession: conf.Registration.SingleSession,
	}
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (svc *Service) studentByCode(ctx context.Context, code string, notFound error, exec ...core.DBExecutor) (student.Student, error) {
	s, err := svc.students.GetStudent(ctx, student.GetFilter{AccessCode: code}, exec...)
	if err != nil {
		if core.IsNotFound(err) {
			return student.Student{}, notFound
		}
		return student.Student{}, err
	}
	return s, nil
}

// Register upserts the participant, links it to the student owning the access code and issues a new token.
func (svc *Service) Register(ctx context.Context, nr NewRegistration) (Issued, error) {
	ttl := svc.tokenTTL
	if nr.ExpiresIn > 0 {
		ttl = time.Duration(nr.ExpiresIn) * time.Minute
	}

	var issued Issued
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		s, err := svc.studentByCode(ctx, nr.AccessCode, ErrStudentNotFound, exec)
		if err != nil {
			return err
		}

		p, err := svc.repo.UpsertParticipant(ctx, Participant{
			Type:      nr.Type,
			Document:  nullString(nr.Document),
			Name:      nr.Name,
			Email:     nr.Email,
			RoleValue: nr.roleValue(),
		}, exec)
		if err != nil {
			return errors.Wrap(err, "upserting participant")
		}
		if err = svc.repo.LinkParticipant(ctx, s.ID, p, exec); err != nil {
			return errors.Wrap(err, "linking participant")
		}

		filter := TokenFilter{Document: nr.Document, StudentID: s.ID}
		if svc.singleSession {
			if err = svc.repo.DeactivateTokens(ctx, filter, exec); err != nil {
				return errors.Wrap(err, "deactivating previous tokens")
			}
		}

		token, err := generateToken()
		if err != nil {
			return errors.Wrap(err, "generating token")
		}
		now := nowFunc().UTC()
		tk := AccessToken{
			Token:     token,
			Type:      nr.Type,
			StudentID: s.ID,
			Document:  nr.Document,
			ExpiresAt: now.Add(ttl),
			Active:    true,
			CreatedAt: now,
		}
		if nr.Type == TypeTeacher {
			tk.TeacherID.SetValid(p.ID)
		} else {
			tk.GuardianID.SetValid(p.ID)
		}
		if err = svc.repo.CreateToken(ctx, tk, map[string]interface{}{"motivo": tokenMetadata}, exec); err != nil {
			return errors.Wrap(err, "creating token")
		}

		issued = Issued{Token: tk.Token, ExpiresAt: tk.ExpiresAt, StudentID: s.ID, Participant: p}
		return nil
	})
	return issued, err
}

// TokenByDocument returns the active token expiring last for document,
// restricted to the student owning code when code is not empty.
func (svc *Service) TokenByDocument(ctx context.Context, document, code string) (AccessToken, error) {
	document = core.CleanString(document)
	if document == "" {
		return AccessToken{}, core.NewValidationError(nil, core.FieldError{
			Field: "documento_identificacion", Error: "this field is required",
		})
	}
	filter := TokenFilter{Document: document}
	if code = core.CleanString(code); code != "" {
		s, err := svc.studentByCode(ctx, code, ErrNoActiveToken)
		if err != nil {
			return AccessToken{}, err
		}
		filter.StudentID = s.ID
	}
	return svc.repo.LatestActiveToken(ctx, filter)
}

// State returns what a client needs to resume the registration identified by token.
func (svc *Service) State(ctx context.Context, token string) (State, error) {
	tk, err := svc.repo.GetActiveToken(ctx, token)
	if err != nil {
		return State{}, err
	}

	state := State{Token: tk.Token, Type: tk.Type, Missing: make([]string, 0)}
	if id := tk.ParticipantID(); id > 0 {
		p, err := svc.repo.GetParticipant(ctx, tk.Type, id)
		if err != nil && !core.IsNotFound(err) {
			return State{}, err
		}
		if err == nil {
			state.Participant = &p
			state.Missing = p.Missing()
		}
	}

	s, err := svc.students.GetStudent(ctx, student.GetFilter{ID: tk.StudentID})
	if err != nil && !core.IsNotFound(err) {
		return State{}, err
	}
	if err == nil {
		state.Student = &StudentSummary{ID: s.ID, Name: s.Name, LastName: s.LastName, AccessCode: s.AccessCode}
	}

	if state.DraftProfile, err = svc.repo.GetDraftProfile(ctx, token); err != nil {
		return State{}, err
	}
	if state.DraftAnswers, err = svc.repo.QueryDraftAnswers(ctx, token); err != nil {
		return State{}, err
	}
	return state, nil
}

// PatchDraft merges data into the token's draft profile, incoming keys winning.
func (svc *Service) PatchDraft(ctx context.Context, token string, data map[string]interface{}) (map[string]interface{}, error) {
	if data == nil {
		data = make(map[string]interface{})
	}
	var profile map[string]interface{}
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		// the token row lock orders the merge against a concurrent Finalize
		if _, err := svc.repo.GetActiveTokenForUpdate(ctx, token, exec); err != nil {
			return err
		}
		var err error
		profile, err = svc.repo.MergeDraftProfile(ctx, token, data, exec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// SaveAnswers upserts the draft answers keyed by (token, question); malformed items are skipped and reported.
func (svc *Service) SaveAnswers(ctx context.Context, token string, sa SaveAnswers) (Saved, error) {
	tk, err := svc.repo.GetActiveToken(ctx, token)
	if err != nil {
		return Saved{}, err
	}
	items, skipped, err := sa.Items()
	if err != nil {
		return Saved{}, err
	}

	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		now := nowFunc().UTC()
		for _, it := range items {
			err := svc.repo.UpsertDraftAnswer(ctx, DraftAnswer{
				Token:      tk.Token,
				StudentID:  tk.StudentID,
				QuestionID: it.QuestionID,
				Answer:     it.Answer,
				UpdatedAt:  now,
			}, exec)
			if err != nil {
				return errors.Wrapf(err, "saving answer to question %d", it.QuestionID)
			}
		}
		return nil
	})
	if err != nil {
		return Saved{}, err
	}
	return Saved{Message: "Guardado", Saved: len(items), Skipped: skipped}, nil
}

// Finalize commits the token's draft answers & profile and closes the token, all or nothing.
// A finalized token no longer resolves, so a second call returns ErrTokenNotFound.
func (svc *Service) Finalize(ctx context.Context, token string) (Finalized, error) {
	var inserted int
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		tk, err := svc.repo.GetActiveTokenForUpdate(ctx, token, exec)
		if err != nil {
			return err
		}

		drafts, err := svc.repo.QueryDraftAnswers(ctx, token, exec)
		if err != nil {
			return err
		}
		if len(drafts) > 0 {
			answers := make([]answer.Answer, 0, len(drafts))
			now := nowFunc().UTC()
			for _, d := range drafts {
				a := answer.Answer{
					StudentID:  tk.StudentID,
					QuestionID: d.QuestionID,
					AnsweredBy: tk.Type,
					Answer:     d.Answer,
					Date:       now,
				}
				if id := tk.ParticipantID(); id > 0 {
					a.UserID.SetValid(id)
				}
				answers = append(answers, a)
			}
			if inserted, err = svc.answers.CreateAnswers(ctx, answers, exec); err != nil {
				return errors.Wrap(err, "committing answers")
			}
		}

		data, err := svc.repo.GetDraftProfile(ctx, token, exec)
		if err != nil {
			return err
		}
		if patch := patchFromDraft(tk.Type, data); !patch.IsEmpty() && tk.ParticipantID() > 0 {
			if err = svc.repo.PatchParticipant(ctx, tk.Type, tk.ParticipantID(), patch, exec); err != nil {
				return errors.Wrap(err, "applying draft profile")
			}
		}

		if err = svc.repo.DeleteDrafts(ctx, token, exec); err != nil {
			return errors.Wrap(err, "deleting drafts")
		}
		return errors.Wrap(svc.repo.DeactivateToken(ctx, token, exec), "deactivating token")
	})
	if err != nil {
		return Finalized{}, err
	}
	return Finalized{Message: "Finalizado", Inserted: inserted}, nil
}

// LinkByEmail finds or creates the participant by e-mail and links it to the student, without issuing a token.
func (svc *Service) LinkByEmail(ctx context.Context, l LinkByEmail) (int, error) {
	var studentID int
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		s, err := svc.studentByCode(ctx, l.AccessCode, ErrInvalidCode, exec)
		if err != nil {
			return err
		}
		p, err := svc.repo.UpsertParticipantByEmail(ctx, Participant{
			Type:      l.Type,
			Name:      l.Name,
			Email:     l.Email,
			RoleValue: l.roleValue(),
		}, exec)
		if err != nil {
			return errors.Wrap(err, "upserting participant")
		}
		studentID = s.ID
		return svc.repo.LinkParticipant(ctx, s.ID, p, exec)
	})
	return studentID, err
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}
