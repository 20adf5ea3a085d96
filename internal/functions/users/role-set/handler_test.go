package roleset

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-functions/internal/common/auth"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/documents"
	ft "crm-functions/internal/functions/functiontest"
)

func TestHandler_PromotesAgent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO profiles (uid, role, crm_user_id, crm_username, created_at, updated_at)")).
		WithArgs("u2", auth.RoleAgent, "005000000000001", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .+ FROM profiles WHERE uid = \\$1").
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"uid", "email", "display_name", "role", "crm_user_id", "crm_username", "created_at", "updated_at"}).
			AddRow("u2", "u2@example.com", "Bo", auth.RoleAgent, "005000000000001", "", now, now))
	mock.ExpectQuery("SELECT uid, token, platform, endpoint_arn, registered_at").
		WillReturnRows(sqlmock.NewRows([]string{"uid", "token", "platform", "endpoint_arn", "registered_at"}))

	h := NewHandler(HandlerOptions{Store: documents.NewStore(db), Logger: logger.NewTestLogger(t)})
	crmID := "005000000000001"
	out, err := h.Invoke(context.Background(), ft.Request(t, ft.Admin("root"), Input{UID: "u2", Role: auth.RoleAgent, CRMUserID: &crmID}))
	require.NoError(t, err)

	p := out.(*Output).Profile
	assert.Equal(t, auth.RoleAgent, p.Role)
	assert.Equal(t, "005000000000001", p.CRMUserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Rejections(t *testing.T) {
	h := NewHandler(HandlerOptions{Logger: logger.NewTestLogger(t)})

	_, err := h.Invoke(context.Background(), ft.Request(t, ft.Admin("root"), Input{UID: "root", Role: auth.RoleAgent}))
	assert.True(t, errs.HasCode(err, errs.ErrCodeValidationFailed))

	bad := "not-an-id"
	_, err = h.Invoke(context.Background(), ft.Request(t, ft.Admin("root"), Input{UID: "u2", Role: auth.RoleAgent, CRMUserID: &bad}))
	assert.True(t, errs.HasCode(err, errs.ErrCodeValidationFailed))

	_, err = h.Invoke(context.Background(), ft.Request(t, ft.Admin("root"), map[string]string{"uid": "u2", "role": "owner"}))
	assert.True(t, errs.HasCode(err, errs.ErrCodeValidationFailed))
}
