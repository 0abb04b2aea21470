package therapist

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/evasensorial/eva/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("terapeuta no encontrado")
	ErrEmailExists        = errors.New("ya existe un terapeuta con este email")
	ErrInvalidCredentials = errors.New("credenciales inválidas")
	ErrNothingToUpdate    = errors.New("no hay campos para actualizar")
)

type (
	Repository interface {
		EmailExists(ctx context.Context, email string, excludeID int, exec ...core.DBExecutor) (bool, error)
		CreateTherapist(ctx context.Context, t Therapist, exec ...core.DBExecutor) (Therapist, error)
		QueryTherapists(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Therapist, error)
		// GetTherapist looks a therapist up by GetFilter.ID, or by GetFilter.Email when ID is zero.
		GetTherapist(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Therapist, error)
		UpdateTherapist(ctx context.Context, t Therapist, exec ...core.DBExecutor) (Therapist, error)
		DeleteTherapist(ctx context.Context, id int, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkEmailUniqueness(ctx context.Context, email string, excludeID int) error {
	exists, err := svc.repo.EmailExists(ctx, email, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return ErrEmailExists
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nt NewTherapist) (Therapist, error) {
	if err := svc.checkEmailUniqueness(ctx, nt.Email, 0); err != nil {
		return Therapist{}, err
	}
	t := Therapist{
		Name:           nt.Name,
		Email:          nt.Email,
		IsSuperAdmin:   nt.IsSuperAdmin,
		Position:       nt.Position,
		Identification: nt.Identification,
		Specialty:      nt.Specialty,
		Phone:          nt.Phone,
		Location:       nt.Location,
		Status:         nt.Status,
		CreatedAt:      time.Now().UTC(),
	}
	if err := t.SetPassword(nt.Password); err != nil {
		return Therapist{}, err
	}
	return svc.repo.CreateTherapist(ctx, t)
}

func (svc *Service) Query(ctx context.Context, ordering ...core.DBOrdering) ([]Therapist, error) {
	return svc.repo.QueryTherapists(ctx, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Therapist, error) {
	return svc.repo.GetTherapist(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Therapist, error) {
	return svc.repo.GetTherapist(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// Authenticate returns the therapist matching email & pwd.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (Therapist, error) {
	t, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if core.IsNotFound(err) {
			return Therapist{}, ErrInvalidCredentials
		}
		return Therapist{}, err
	}
	if err := t.CheckPassword(pwd); err != nil {
		return Therapist{}, ErrInvalidCredentials
	}
	return t, nil
}

func (svc *Service) Update(ctx context.Context, id int, ut UpdateTherapist) (Therapist, error) {
	t, err := svc.GetByID(ctx, id)
	if err != nil {
		return Therapist{}, err
	}
	if ut.Email != nil && *ut.Email != t.Email {
		if err := svc.checkEmailUniqueness(ctx, *ut.Email, id); err != nil {
			return Therapist{}, err
		}
	}
	if err := ut.apply(&t); err != nil {
		return Therapist{}, err
	}
	return svc.repo.UpdateTherapist(ctx, t)
}

// SetPassword replaces the password of the therapist identified by email.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) (Therapist, error) {
	t, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return Therapist{}, err
	}
	if err := t.SetPassword(pwd); err != nil {
		return Therapist{}, err
	}
	return svc.repo.UpdateTherapist(ctx, t)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteTherapist(ctx, id)
}
