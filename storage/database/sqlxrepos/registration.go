package sqlxrepos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/registration"
)

const tokenColumns = `token, tipo_usuario, familiar_id, profesor_id, estudiante_id, documento_identificacion,
	expira_en, activo, creado_en`

// participantTable names the storage of one participant type.
type participantTable struct {
	name     string
	idColumn string
	role     string
	link     string
}

func tableFor(typ string) participantTable {
	if typ == registration.TypeTeacher {
		return participantTable{name: "profesores", idColumn: "profesor_id", role: "materia", link: "estudiante_profesor"}
	}
	return participantTable{name: "familiares", idColumn: "familiar_id", role: "parentesco", link: "estudiante_familiar"}
}

// returning lists the participant columns under the aliases scanned by participantRow.
func (t participantTable) returning() string {
	return fmt.Sprintf("%s AS id, documento_identificacion, nombre, email, %s AS rol", t.idColumn, t.role)
}

type participantRow struct {
	ID        int         `db:"id"`
	Document  null.String `db:"documento_identificacion"`
	Name      string      `db:"nombre"`
	Email     string      `db:"email"`
	RoleValue null.String `db:"rol"`
}

func (row participantRow) participant(typ string) registration.Participant {
	return registration.Participant{
		Type:      typ,
		ID:        row.ID,
		Document:  row.Document,
		Name:      row.Name,
		Email:     row.Email,
		RoleValue: row.RoleValue,
	}
}

type registrationRepository struct {
	baseRepository
}

var _ registration.Repository = (*registrationRepository)(nil)

func NewRegistrationRepository(exec core.DBExecutor) *registrationRepository {
	return &registrationRepository{baseRepository{exec: exec}}
}

func (repo registrationRepository) UpsertParticipant(ctx context.Context, p registration.Participant, exec ...core.DBExecutor) (registration.Participant, error) {
	t := tableFor(p.Type)
	q := fmt.Sprintf(`INSERT INTO %[1]s (documento_identificacion, nombre, email, %[2]s)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (documento_identificacion) DO UPDATE SET
			nombre = COALESCE(NULLIF(EXCLUDED.nombre, ''), %[1]s.nombre),
			email = COALESCE(NULLIF(EXCLUDED.email, ''), %[1]s.email),
			%[2]s = COALESCE(NULLIF(EXCLUDED.%[2]s, ''), %[1]s.%[2]s)
		RETURNING %[3]s`, t.name, t.role, t.returning())

	var row participantRow
	if err := repo.getExec(exec).GetContext(ctx, &row, q, p.Document, p.Name, p.Email, p.RoleValue); err != nil {
		return registration.Participant{}, errors.Wrapf(err, "upserting %s", t.name)
	}
	return row.participant(p.Type), nil
}

func (repo registrationRepository) UpsertParticipantByEmail(ctx context.Context, p registration.Participant, exec ...core.DBExecutor) (registration.Participant, error) {
	t := tableFor(p.Type)
	ex := repo.getExec(exec)

	var id int
	q := fmt.Sprintf("SELECT %[1]s FROM %[2]s WHERE lower(email) = lower($1) ORDER BY %[1]s LIMIT 1", t.idColumn, t.name)
	err := ex.GetContext(ctx, &id, q, p.Email)
	if err != nil && !isNoRows(err) {
		return registration.Participant{}, errors.Wrapf(err, "selecting %s", t.name)
	}

	var row participantRow
	if id == 0 {
		q = fmt.Sprintf(`INSERT INTO %s (nombre, email, %s) VALUES ($1, $2, NULLIF($3, '')) RETURNING %s`,
			t.name, t.role, t.returning())
		err = ex.GetContext(ctx, &row, q, p.Name, p.Email, p.RoleValue)
	} else {
		q = fmt.Sprintf(`UPDATE %[1]s SET
				nombre = COALESCE(NULLIF($1, ''), nombre),
				%[2]s = COALESCE(NULLIF($2, ''), %[2]s)
			WHERE %[3]s = $3
			RETURNING %[4]s`, t.name, t.role, t.idColumn, t.returning())
		err = ex.GetContext(ctx, &row, q, p.Name, p.RoleValue, id)
	}
	if err != nil {
		return registration.Participant{}, errors.Wrapf(err, "upserting %s", t.name)
	}
	return row.participant(p.Type), nil
}

func (repo registrationRepository) GetParticipant(ctx context.Context, typ string, id int, exec ...core.DBExecutor) (registration.Participant, error) {
	t := tableFor(typ)
	var row participantRow
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", t.returning(), t.name, t.idColumn)
	if err := repo.getExec(exec).GetContext(ctx, &row, q, id); err != nil {
		return registration.Participant{}, trapNoRowsErr(err, core.NewNotFoundError(typ+" no encontrado"), "selecting "+t.name)
	}
	return row.participant(typ), nil
}

func (repo registrationRepository) PatchParticipant(ctx context.Context, typ string, id int, patch registration.ParticipantPatch, exec ...core.DBExecutor) error {
	if patch.IsEmpty() {
		return nil
	}
	t := tableFor(typ)
	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	add := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Name != nil {
		add("nombre", *patch.Name)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.RoleValue != nil {
		add(t.role, *patch.RoleValue)
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d", t.name, strings.Join(sets, ", "), t.idColumn, len(args))

	if _, err := repo.getExec(exec).ExecContext(ctx, q, args...); err != nil {
		return errors.Wrapf(err, "updating %s", t.name)
	}
	return nil
}

func (repo registrationRepository) LinkParticipant(ctx context.Context, studentID int, p registration.Participant, exec ...core.DBExecutor) error {
	t := tableFor(p.Type)
	q := fmt.Sprintf("INSERT INTO %s (estudiante_id, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING", t.link, t.idColumn)
	if _, err := repo.getExec(exec).ExecContext(ctx, q, studentID, p.ID); err != nil {
		return errors.Wrapf(err, "inserting into %s", t.link)
	}
	return nil
}

func (repo registrationRepository) CreateToken(ctx context.Context, tk registration.AccessToken, metadata map[string]interface{}, exec ...core.DBExecutor) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return errors.Wrap(err, "encoding token metadata")
	}
	q := `INSERT INTO api_tokens (token, tipo_usuario, familiar_id, profesor_id, estudiante_id,
			documento_identificacion, expira_en, activo, metadata, creado_en)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = repo.getExec(exec).ExecContext(ctx, q,
		tk.Token, tk.Type, tk.GuardianID, tk.TeacherID, tk.StudentID,
		tk.Document, tk.ExpiresAt, tk.Active, types.JSONText(meta), tk.CreatedAt,
	)
	return errors.Wrap(err, "inserting token")
}

func (repo registrationRepository) getActiveToken(ctx context.Context, token, suffix string, exec []core.DBExecutor) (registration.AccessToken, error) {
	var tk registration.AccessToken
	q := "SELECT " + tokenColumns + " FROM api_tokens WHERE token = $1 AND activo AND expira_en > now()" + suffix
	if err := repo.getExec(exec).GetContext(ctx, &tk, q, token); err != nil {
		return registration.AccessToken{}, trapNoRowsErr(err, registration.ErrTokenNotFound, "selecting token")
	}
	return tk, nil
}

func (repo registrationRepository) GetActiveToken(ctx context.Context, token string, exec ...core.DBExecutor) (registration.AccessToken, error) {
	return repo.getActiveToken(ctx, token, "", exec)
}

func (repo registrationRepository) GetActiveTokenForUpdate(ctx context.Context, token string, exec ...core.DBExecutor) (registration.AccessToken, error) {
	return repo.getActiveToken(ctx, token, " FOR UPDATE", exec)
}

func tokenWhere(filter registration.TokenFilter) (string, []interface{}) {
	where := "documento_identificacion = $1 AND activo"
	args := []interface{}{filter.Document}
	if filter.StudentID > 0 {
		where += " AND estudiante_id = $2"
		args = append(args, filter.StudentID)
	}
	return where, args
}

func (repo registrationRepository) LatestActiveToken(ctx context.Context, filter registration.TokenFilter, exec ...core.DBExecutor) (registration.AccessToken, error) {
	where, args := tokenWhere(filter)
	q := "SELECT " + tokenColumns + " FROM api_tokens WHERE " + where + " AND expira_en > now() ORDER BY expira_en DESC LIMIT 1"

	var tk registration.AccessToken
	if err := repo.getExec(exec).GetContext(ctx, &tk, q, args...); err != nil {
		return registration.AccessToken{}, trapNoRowsErr(err, registration.ErrNoActiveToken, "selecting token")
	}
	return tk, nil
}

func (repo registrationRepository) DeactivateTokens(ctx context.Context, filter registration.TokenFilter, exec ...core.DBExecutor) error {
	where, args := tokenWhere(filter)
	_, err := repo.getExec(exec).ExecContext(ctx, "UPDATE api_tokens SET activo = FALSE WHERE "+where, args...)
	return errors.Wrap(err, "deactivating tokens")
}

func (repo registrationRepository) DeactivateToken(ctx context.Context, token string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, "UPDATE api_tokens SET activo = FALSE WHERE token = $1", token)
	return errors.Wrap(err, "deactivating token")
}

func decodeProfile(data types.JSONText) (map[string]interface{}, error) {
	profile := make(map[string]interface{})
	if len(data) == 0 {
		return profile, nil
	}
	if err := data.Unmarshal(&profile); err != nil {
		return nil, errors.Wrap(err, "decoding draft profile")
	}
	if profile == nil {
		profile = make(map[string]interface{})
	}
	return profile, nil
}

func (repo registrationRepository) MergeDraftProfile(ctx context.Context, token string, data map[string]interface{}, exec ...core.DBExecutor) (map[string]interface{}, error) {
	incoming, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "encoding draft profile")
	}
	q := `INSERT INTO participante_temp (token, data, actualizado_en)
		VALUES ($1, $2, now())
		ON CONFLICT (token) DO UPDATE SET
			data = participante_temp.data || EXCLUDED.data,
			actualizado_en = now()
		RETURNING data`

	var merged types.JSONText
	if err = repo.getExec(exec).GetContext(ctx, &merged, q, token, types.JSONText(incoming)); err != nil {
		return nil, errors.Wrap(err, "merging draft profile")
	}
	return decodeProfile(merged)
}

func (repo registrationRepository) GetDraftProfile(ctx context.Context, token string, exec ...core.DBExecutor) (map[string]interface{}, error) {
	var data types.JSONText
	err := repo.getExec(exec).GetContext(ctx, &data, "SELECT data FROM participante_temp WHERE token = $1", token)
	if err != nil {
		if isNoRows(err) {
			return make(map[string]interface{}), nil
		}
		return nil, errors.Wrap(err, "selecting draft profile")
	}
	return decodeProfile(data)
}

func (repo registrationRepository) UpsertDraftAnswer(ctx context.Context, a registration.DraftAnswer, exec ...core.DBExecutor) error {
	q := `INSERT INTO respuestas_temp (token, estudiante_id, pregunta_id, respuesta, actualizado_en)
		VALUES (:token, :estudiante_id, :pregunta_id, :respuesta, :actualizado_en)
		ON CONFLICT (token, pregunta_id) DO UPDATE SET
			respuesta = EXCLUDED.respuesta,
			actualizado_en = EXCLUDED.actualizado_en`
	_, err := repo.getExec(exec).NamedExecContext(ctx, q, a)
	return errors.Wrap(err, "upserting draft answer")
}

func (repo registrationRepository) QueryDraftAnswers(ctx context.Context, token string, exec ...core.DBExecutor) ([]registration.DraftAnswer, error) {
	drafts := make([]registration.DraftAnswer, 0)
	q := `SELECT token, estudiante_id, pregunta_id, respuesta, actualizado_en
		FROM respuestas_temp WHERE token = $1 ORDER BY actualizado_en DESC, pregunta_id`
	if err := repo.getExec(exec).SelectContext(ctx, &drafts, q, token); err != nil {
		return nil, errors.Wrap(err, "selecting draft answers")
	}
	return drafts, nil
}

func (repo registrationRepository) DeleteDrafts(ctx context.Context, token string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	if _, err := ex.ExecContext(ctx, "DELETE FROM respuestas_temp WHERE token = $1", token); err != nil {
		return errors.Wrap(err, "deleting draft answers")
	}
	_, err := ex.ExecContext(ctx, "DELETE FROM participante_temp WHERE token = $1", token)
	return errors.Wrap(err, "deleting draft profile")
}
