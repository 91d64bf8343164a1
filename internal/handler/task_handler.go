package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskflow/internal/bus"
	"taskflow/internal/middleware"
	"taskflow/internal/model"
	"taskflow/internal/notify"
	"taskflow/internal/repository"
)

type TaskHandler struct {
	tasks  *repository.TaskRepository
	users  *repository.UserRepository
	engine *notify.Engine
	store  *notify.Store
	bus    notify.Publisher
}

func NewTaskHandler(tasks *repository.TaskRepository, users *repository.UserRepository, engine *notify.Engine, store *notify.Store, publisher notify.Publisher) *TaskHandler {
	return &TaskHandler{tasks: tasks, users: users, engine: engine, store: store, bus: publisher}
}

type createTaskRequest struct {
	Title          string      `json:"title" binding:"required"`
	Description    string      `json:"description"`
	Priority       string      `json:"priority"`
	Status         string      `json:"status"`
	Deadline       *time.Time  `json:"deadline"`
	ReminderAt     *time.Time  `json:"reminder_at"`
	AssignedTo     *uuid.UUID  `json:"assigned_to"`
	AssignedToRole *uuid.UUID  `json:"assigned_to_role"`
	Assignees      []uuid.UUID `json:"assignees"`
}

type updateTaskRequest struct {
	Title          *string      `json:"title"`
	Description    *string      `json:"description"`
	Priority       *string      `json:"priority"`
	Status         *string      `json:"status"`
	Deadline       *time.Time   `json:"deadline"`
	ReminderAt     *time.Time   `json:"reminder_at"`
	AssignedTo     *uuid.UUID   `json:"assigned_to"`
	AssignedToRole *uuid.UUID   `json:"assigned_to_role"`
	Assignees      *[]uuid.UUID `json:"assignees"`
}

func (h *TaskHandler) Create(c *gin.Context) {
	actor, ok := h.requireCapability(c, model.CapCreateTasks)
	if !ok {
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	task := &model.Task{
		ID:          uuid.New(),
		Title:       req.Title,
		Description: req.Description,
		Priority:    defaultString(req.Priority, model.PriorityMedium),
		Status:      defaultString(req.Status, model.StatusPending),
		Deadline:    req.Deadline,
		ReminderAt:  req.ReminderAt,
		CreatedByID: &actor.ID,
	}

	// A task is assigned to people or to a role, never both.
	if len(req.Assignees) > 0 {
		first := req.Assignees[0]
		task.AssignedToID = &first
	} else if req.AssignedTo != nil {
		task.AssignedToID = req.AssignedTo
	} else if req.AssignedToRole != nil {
		task.AssignedToRoleID = req.AssignedToRole
	}

	if err := h.tasks.Create(c.Request.Context(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Create failed"})
		return
	}
	if len(req.Assignees) > 0 {
		if err := h.tasks.SetAssignees(c.Request.Context(), task, usersFromIDs(req.Assignees)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Assign failed"})
			return
		}
	}

	state := notify.StateOf(task)
	state.Assignees = req.Assignees
	h.engine.OnTaskCreated(c.Request.Context(), state, actor.ID)

	created, err := h.tasks.GetByID(c.Request.Context(), task.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *TaskHandler) Update(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID"})
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if !canMutate(actor, &req) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
		return
	}

	task, err := h.tasks.GetByID(c.Request.Context(), taskID)
	if err != nil {
		if err == repository.ErrTaskNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	if !h.canView(actor, task) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
		return
	}

	old := notify.StateOf(task)

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	if req.Deadline != nil {
		task.Deadline = req.Deadline
	}
	if req.ReminderAt != nil {
		task.ReminderAt = req.ReminderAt
	}
	if req.AssignedTo != nil {
		task.AssignedToID = req.AssignedTo
		task.AssignedToRoleID = nil
	}
	if req.AssignedToRole != nil {
		task.AssignedToRoleID = req.AssignedToRole
		task.AssignedToID = nil
	}

	newAssignees := task.AssigneeIDs()
	if req.Assignees != nil {
		newAssignees = *req.Assignees
		if len(newAssignees) > 0 {
			first := newAssignees[0]
			task.AssignedToID = &first
			task.AssignedToRoleID = nil
		} else {
			task.AssignedToID = nil
		}
	}

	if err := h.tasks.Update(c.Request.Context(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Update failed"})
		return
	}
	if req.Assignees != nil {
		if err := h.tasks.SetAssignees(c.Request.Context(), task, usersFromIDs(newAssignees)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Assign failed"})
			return
		}
	}

	current := notify.StateOf(task)
	current.Assignees = newAssignees
	h.engine.OnTaskMutated(c.Request.Context(), old, current, actor.ID)

	updated, err := h.tasks.GetByID(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	actor, ok := h.requireCapability(c, model.CapDeleteTasks)
	if !ok {
		return
	}
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID"})
		return
	}

	task, err := h.tasks.GetByID(c.Request.Context(), taskID)
	if err != nil {
		if err == repository.ErrTaskNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}

	if err := h.tasks.Delete(c.Request.Context(), taskID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Delete failed"})
		return
	}
	h.engine.OnTaskDeleted(c.Request.Context(), notify.StateOf(task), actor.ID)
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) GetByID(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID"})
		return
	}
	task, err := h.tasks.GetByID(c.Request.Context(), taskID)
	if err != nil {
		if err == repository.ErrTaskNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	if !h.canView(actor, task) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) List(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	f := repository.TaskFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
	}
	if raw := c.Query("assigned_to"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid assigned_to"})
			return
		}
		f.AssignedTo = &id
	}
	if !actor.Has(model.CapViewTasks) {
		f.VisibleTo = &actor.ID
	}
	if c.Query("my_tasks") == "true" {
		f.AssignedUser = &actor.ID
	}

	tasks, err := h.tasks.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	c.JSON(http.StatusOK, tasks)
}

type createCommentRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *TaskHandler) ListComments(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID"})
		return
	}
	task, err := h.tasks.GetByID(c.Request.Context(), taskID)
	if err != nil {
		if err == repository.ErrTaskNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	if !h.canView(actor, task) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
		return
	}
	comments, err := h.tasks.ListComments(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	c.JSON(http.StatusOK, comments)
}

// CreateComment stores the comment, notifies the task's creator and assignees
// except the author, and pushes the comment to the task's live room.
func (h *TaskHandler) CreateComment(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID"})
		return
	}
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	task, err := h.tasks.GetByID(c.Request.Context(), taskID)
	if err != nil {
		if err == repository.ErrTaskNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	if !h.canView(actor, task) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only comment on tasks you created or are assigned to"})
		return
	}

	comment := &model.TaskComment{
		ID:       uuid.New(),
		TaskID:   taskID,
		AuthorID: &actor.ID,
		Body:     req.Body,
	}
	if err := h.tasks.CreateComment(c.Request.Context(), comment); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Create failed"})
		return
	}

	toNotify := make(map[uuid.UUID]struct{})
	if task.CreatedByID != nil {
		toNotify[*task.CreatedByID] = struct{}{}
	}
	for _, id := range task.AssigneeIDs() {
		toNotify[id] = struct{}{}
	}
	if task.AssignedToID != nil {
		toNotify[*task.AssignedToID] = struct{}{}
	}
	delete(toNotify, actor.ID)

	for id := range toNotify {
		// Failures here are logged inside the store path; one bad recipient
		// must not block the rest.
		h.store.Create(c.Request.Context(), id, model.TypeTaskComment, "New comment on task",
			actor.Name+` commented on task "`+task.Title+`".`,
			"/tasks/"+taskID.String(),
			map[string]interface{}{"task_id": taskID.String(), "comment_id": comment.ID.String()})
	}

	h.bus.Publish(bus.TaskCommentsRoom(taskID), bus.Event{Type: bus.EventNewComment, Payload: comment})

	c.JSON(http.StatusCreated, comment)
}

func (h *TaskHandler) currentUser(c *gin.Context) (*model.User, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}
	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return nil, false
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}
	return user, true
}

func (h *TaskHandler) requireCapability(c *gin.Context, cap model.Capability) (*model.User, bool) {
	user, ok := h.currentUser(c)
	if !ok {
		return nil, false
	}
	if !user.Has(cap) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
		return nil, false
	}
	return user, true
}

// canMutate: a full edit needs the edit capability. A request that only moves
// the task between statuses also passes with the status capability, and one
// that only touches assignment with the assign capability.
func canMutate(user *model.User, req *updateTaskRequest) bool {
	if user.Has(model.CapEditTasks) {
		return true
	}
	contentChange := req.Title != nil || req.Description != nil || req.Priority != nil ||
		req.Deadline != nil || req.ReminderAt != nil
	assignChange := req.AssignedTo != nil || req.AssignedToRole != nil || req.Assignees != nil
	if contentChange {
		return false
	}
	if req.Status != nil && !user.Has(model.CapChangeTaskStatus) {
		return false
	}
	if assignChange && !user.Has(model.CapAssignTasks) {
		return false
	}
	return req.Status != nil || assignChange
}

// canView: a task is visible to its creator, its single assignee, anyone in
// the assignee set, and users holding the view capability.
func (h *TaskHandler) canView(user *model.User, task *model.Task) bool {
	if user.Has(model.CapViewTasks) {
		return true
	}
	if task.CreatedByID != nil && *task.CreatedByID == user.ID {
		return true
	}
	if task.AssignedToID != nil && *task.AssignedToID == user.ID {
		return true
	}
	for _, id := range task.AssigneeIDs() {
		if id == user.ID {
			return true
		}
	}
	return false
}

func usersFromIDs(ids []uuid.UUID) []model.User {
	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, model.User{ID: id})
	}
	return users
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
