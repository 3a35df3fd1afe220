package manager

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kokutaro/mahjong-point-manager-sub001/internal/game/engine"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/game/table"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/score"
)

// Handler exposes the engine over HTTP. Multiplayer seats act for themselves;
// a solo owner drives all four seats by position.
type Handler struct {
	mgr *GameManager
}

func NewHandler(mgr *GameManager) *Handler {
	return &Handler{mgr: mgr}
}

func httpStatus(err error) int {
	switch {
	case table.IsValidation(err):
		return http.StatusBadRequest
	case table.IsConflict(err):
		return http.StatusConflict
	case table.IsNotFound(err):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.JSON(httpStatus(err), gin.H{"error": err.Error()})
}

// engineFor resolves the match and checks the caller may act on the given
// seat. Solo: owner only, any position. Multiplayer: the seat must be the
// caller's own.
func (h *Handler) engineFor(c *gin.Context, seat int) (*engine.Engine, table.SeatRef, bool) {
	eng, err := h.mgr.Engine(c.Param("id"))
	if err != nil {
		fail(c, err)
		return nil, table.SeatRef{}, false
	}
	playerID := c.GetString("playerID")
	state := eng.State()

	if state.SoloOwner != "" {
		if state.SoloOwner != playerID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not the match owner"})
			return nil, table.SeatRef{}, false
		}
		return eng, table.ByPosition(seat), true
	}
	if seat < 0 || seat > 3 || state.Seats[seat].Occupant != playerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "seat is not yours"})
		return nil, table.SeatRef{}, false
	}
	return eng, table.ByPosition(seat), true
}

type createSoloRequest struct {
	GameLength string `json:"gameLength" binding:"required"`
	BasePoints int    `json:"basePoints"`
}

// POST /solo
func (h *Handler) CreateSolo(c *gin.Context) {
	var req createSoloRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.mgr.CreateSoloMatch(c.Request.Context(),
		c.GetString("playerID"), table.GameLength(req.GameLength), req.BasePoints)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// GET /matches/:id/state
func (h *Handler) GetState(c *gin.Context) {
	eng, err := h.mgr.Engine(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, eng.State())
}

type reachRequest struct {
	Seat int `json:"seat"`
}

// POST /matches/:id/reach
func (h *Handler) DeclareReach(c *gin.Context) {
	var req reachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	eng, ref, ok := h.engineFor(c, req.Seat)
	if !ok {
		return
	}
	m, err := eng.DeclareReach(c.Request.Context(), ref)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

type winRequest struct {
	WinnerSeat int  `json:"winnerSeat"`
	Han        int  `json:"han" binding:"required"`
	Fu         int  `json:"fu"`
	IsTsumo    bool `json:"isTsumo"`
	LoserSeat  *int `json:"loserSeat,omitempty"`
}

// POST /matches/:id/win
func (h *Handler) Win(c *gin.Context) {
	var req winRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	eng, ref, ok := h.engineFor(c, req.WinnerSeat)
	if !ok {
		return
	}
	var loser *table.SeatRef
	if req.LoserSeat != nil {
		r := table.ByPosition(*req.LoserSeat)
		loser = &r
	}
	out, err := eng.DistributeWinPoints(c.Request.Context(), ref, req.Han, req.Fu, req.IsTsumo, loser)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type ryukyokuRequest struct {
	Reason      string `json:"reason"`
	TenpaiSeats []int  `json:"tenpaiSeats"`
}

// POST /matches/:id/ryukyoku
func (h *Handler) Ryukyoku(c *gin.Context) {
	var req ryukyokuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Any seated player (or the solo owner) may report the draw.
	eng, err := h.mgr.Engine(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if !h.mayAct(c, eng) {
		return
	}
	out, err := eng.HandleRyukyoku(c.Request.Context(), req.Reason, req.TenpaiSeats)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type endRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// POST /matches/:id/end
func (h *Handler) ForceEnd(c *gin.Context) {
	var req endRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	eng, err := h.mgr.Engine(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if !h.mayAct(c, eng) {
		return
	}
	m, err := eng.ForceEndGame(c.Request.Context(), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) mayAct(c *gin.Context, eng *engine.Engine) bool {
	playerID := c.GetString("playerID")
	state := eng.State()
	if state.SoloOwner != "" {
		if state.SoloOwner == playerID {
			return true
		}
	} else {
		for _, s := range state.Seats {
			if s.Occupant == playerID {
				return true
			}
		}
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "not seated at this match"})
	return false
}

// GET /score/preview?han=&fu=&dealer=&tsumo=&honba=&kyotaku=
// Pure calculator call, no match state touched.
func (h *Handler) PreviewScore(c *gin.Context) {
	han, _ := strconv.Atoi(c.Query("han"))
	fu, _ := strconv.Atoi(c.Query("fu"))
	honba, _ := strconv.Atoi(c.DefaultQuery("honba", "0"))
	kyotaku, _ := strconv.Atoi(c.DefaultQuery("kyotaku", "0"))
	dealer := c.Query("dealer") == "true"
	tsumo := c.Query("tsumo") == "true"

	b, err := score.Calculate(han, fu, dealer, tsumo, honba, kyotaku)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, b)
}
