package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"taskflow/internal/bus"
	"taskflow/internal/handler"
	"taskflow/internal/model"
	"taskflow/internal/notify"
	"taskflow/internal/repository"
)

func setupTaskTest(t *testing.T, actorID uuid.UUID) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	assert.NoError(t, err)

	eventBus := bus.New(4)
	store := notify.NewStore(repository.NewNotificationRepository(gdb), eventBus)
	engine := notify.NewEngine(store, repository.NewAuditRepository(gdb), eventBus)
	taskHandler := handler.NewTaskHandler(
		repository.NewTaskRepository(gdb), repository.NewUserRepository(gdb), engine, store, eventBus)

	gin.SetMode(gin.TestMode)
	r := gin.Default()
	r.PUT("/tasks/:id", authAs(actorID), taskHandler.Update)
	return r, mock
}

func expectActor(mock sqlmock.Sqlmock, actorID uuid.UUID, roleID *uuid.UUID, caps model.Capability) {
	userRows := sqlmock.NewRows([]string{"id", "email", "hashed_password", "name", "is_staff", "role_id", "created_at"}).
		AddRow(actorID, "worker@example.com", "hash", "Worker", false, roleID, time.Now())
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
		WithArgs(actorID, 1).
		WillReturnRows(userRows)
	if roleID != nil {
		roleRows := sqlmock.NewRows([]string{"id", "name", "capabilities"}).
			AddRow(*roleID, "worker", int64(caps))
		mock.ExpectQuery(`SELECT \* FROM "roles" WHERE "roles"\."id" = \$1`).
			WithArgs(*roleID).
			WillReturnRows(roleRows)
	}
}

func putTask(router *gin.Engine, taskID uuid.UUID, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("PUT", "/tasks/"+taskID.String(), strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestUpdateStatusWithoutCapabilityForbidden(t *testing.T) {
	actorID := uuid.New()
	router, mock := setupTaskTest(t, actorID)

	expectActor(mock, actorID, nil, 0)

	resp := putTask(router, uuid.New(), `{"status":"ongoing"}`)

	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusWithStatusCapabilityReachesTask(t *testing.T) {
	actorID := uuid.New()
	roleID := uuid.New()
	router, mock := setupTaskTest(t, actorID)

	expectActor(mock, actorID, &roleID, model.CapChangeTaskStatus)
	// An empty result here means the capability check already passed.
	mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	resp := putTask(router, uuid.New(), `{"status":"finished"}`)

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAssigneesWithAssignCapabilityReachesTask(t *testing.T) {
	actorID := uuid.New()
	roleID := uuid.New()
	router, mock := setupTaskTest(t, actorID)

	expectActor(mock, actorID, &roleID, model.CapAssignTasks)
	mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	resp := putTask(router, uuid.New(), `{"assignees":["`+uuid.NewString()+`"]}`)

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateContentRequiresEditCapability(t *testing.T) {
	actorID := uuid.New()
	roleID := uuid.New()
	router, mock := setupTaskTest(t, actorID)

	expectActor(mock, actorID, &roleID, model.CapChangeTaskStatus|model.CapAssignTasks)

	resp := putTask(router, uuid.New(), `{"title":"Renamed"}`)

	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusMixedWithAssigneesNeedsBothCapabilities(t *testing.T) {
	actorID := uuid.New()
	roleID := uuid.New()
	router, mock := setupTaskTest(t, actorID)

	expectActor(mock, actorID, &roleID, model.CapChangeTaskStatus)

	resp := putTask(router, uuid.New(), `{"status":"ongoing","assignees":[]}`)

	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
