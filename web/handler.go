package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"billsplit/bill"
	"billsplit/service"
)

const sessionContextKey = "session"

type handler struct {
	manager  *service.Manager
	upgrader websocket.Upgrader
}

func newHandler(manager *service.Manager, isDev bool) *handler {
	return &handler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// any origin in dev, same origin otherwise
				return isDev || r.Header.Get("Origin") == "" || r.Header.Get("Origin") == "http://"+r.Host || r.Header.Get("Origin") == "https://"+r.Host
			},
		},
	}
}

func rejected(c *gin.Context, extra gin.H) {
	body := gin.H{"accepted": false}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusUnprocessableEntity, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func currentSession(c *gin.Context) *service.Session {
	return c.MustGet(sessionContextKey).(*service.Session)
}

func (h *handler) loadSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("session"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	s, err := h.manager.Get(id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Set(sessionContextKey, s)
	c.Next()
}

type openSessionRequest struct {
	TableID   string `json:"tableId" binding:"required"`
	SessionID string `json:"sessionId"`
}

func (h *handler) openSession(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sessionID := uuid.Nil
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			badRequest(c, errors.New("invalid session id"))
			return
		}
		sessionID = id
	}

	s, err := h.manager.Open(c.Request.Context(), sessionID, req.TableID)
	if err != nil {
		if s == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "session": s.Snapshot()})
		return
	}
	c.JSON(http.StatusCreated, s.Snapshot())
}

func (h *handler) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c).Snapshot())
}

func (h *handler) closeSession(c *gin.Context) {
	s := currentSession(c)
	purge := c.Query("purge") == "true"
	if err := h.manager.Close(c.Request.Context(), s.ID, purge); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type setModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

func (h *handler) setMode(c *gin.Context) {
	var req setModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s := currentSession(c)
	if !s.SetMode(bill.Mode(req.Mode)) {
		rejected(c, nil)
		return
	}
	snap := s.Snapshot()
	c.JSON(http.StatusOK, gin.H{"accepted": true, "mode": snap.Mode, "amountDue": snap.AmountDue})
}

func (h *handler) incrementPeople(c *gin.Context) {
	n := currentSession(c).IncrementPeople()
	c.JSON(http.StatusOK, gin.H{"accepted": true, "peopleCount": n})
}

func (h *handler) decrementPeople(c *gin.Context) {
	n, ok := currentSession(c).DecrementPeople()
	if !ok {
		rejected(c, gin.H{"peopleCount": n})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true, "peopleCount": n})
}

func (h *handler) share(c *gin.Context) {
	share, people := currentSession(c).Share()
	c.JSON(http.StatusOK, gin.H{"perPersonShare": share, "peopleCount": people})
}

func (h *handler) availableEntries(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c).AvailableEntries())
}

func (h *handler) maxAssignable(c *gin.Context) {
	entryID := c.Param("entry")
	// an unknown entry has nothing to assign
	n, known := currentSession(c).MaxAssignable(entryID)
	c.JSON(http.StatusOK, gin.H{"entryId": entryID, "maxAssignable": n, "known": known})
}

type stageQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *handler) stageQuantity(c *gin.Context) {
	var req stageQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s := currentSession(c)
	if !s.StageQuantity(c.Param("entry"), *req.Quantity) {
		rejected(c, gin.H{"staged": s.Staged()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true, "staged": s.Staged()})
}

func (h *handler) clearStaged(c *gin.Context) {
	s := currentSession(c)
	s.ClearStaged()
	c.JSON(http.StatusOK, gin.H{"staged": s.Staged()})
}

// Selections nil means commit the staged selection.
type createGroupRequest struct {
	Name       string         `json:"name"`
	Selections map[string]int `json:"selections"`
}

func (h *handler) createGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !VerifyGroupName(req.Name) {
		rejected(c, gin.H{"error": "invalid group name"})
		return
	}
	group, ok := currentSession(c).CreateGroup(req.Name, req.Selections)
	if !ok {
		rejected(c, nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"accepted": true, "group": group})
}

func groupID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("group"))
	if err != nil {
		badRequest(c, errors.New("invalid group id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *handler) deleteGroup(c *gin.Context) {
	id, ok := groupID(c)
	if !ok {
		return
	}
	if !currentSession(c).DeleteGroup(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) togglePaid(c *gin.Context) {
	id, ok := groupID(c)
	if !ok {
		return
	}
	s := currentSession(c)
	paid, ok := s.TogglePaid(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	pending, _ := s.Pending()
	c.JSON(http.StatusOK, gin.H{"groupId": id, "paid": paid, "pendingAmount": pending})
}

func (h *handler) pending(c *gin.Context) {
	pending, paid := currentSession(c).Pending()
	c.JSON(http.StatusOK, gin.H{"pendingAmount": pending, "paidAmount": paid})
}

func (h *handler) refresh(c *gin.Context) {
	s := currentSession(c)
	if err := s.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}
