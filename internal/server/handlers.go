package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/thruflo/stagehand/internal/block"
	"github.com/thruflo/stagehand/internal/geom"
	"github.com/thruflo/stagehand/internal/render"
	"github.com/thruflo/stagehand/internal/stage"
	"github.com/thruflo/stagehand/internal/stream"
)

// SpriteView is the JSON form of a sprite: the stream payload plus its
// block list.
type SpriteView struct {
	stream.SpriteEvent
	Blocks []block.Block `json:"blocks"`
}

func viewOf(snap stage.Snapshot) SpriteView {
	blocks := snap.Blocks
	if blocks == nil {
		blocks = []block.Block{}
	}
	return SpriteView{SpriteEvent: snap.Event(), Blocks: blocks}
}

func respond(c *gin.Context, ok bool) {
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": msg})
}

func intParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return n, true
}

// bindBlock decodes a block body. Well-formed JSON of the wrong shape still
// decodes, to a block that takes its defaults.
func bindBlock(c *gin.Context) (block.Block, bool) {
	var b block.Block
	if err := c.ShouldBindJSON(&b); err != nil {
		badRequest(c, "invalid block")
		return block.Block{}, false
	}
	return b, true
}

func (s *Server) handleSprites(c *gin.Context) {
	snaps := s.stage.Snapshots()
	views := make([]SpriteView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, viewOf(snap))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleAddSprite(c *gin.Context) {
	c.JSON(http.StatusOK, viewOf(s.stage.Add()))
}

func (s *Server) handleRemoveSprite(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	respond(c, s.stage.Remove(id))
}

func (s *Server) handleSelect(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	respond(c, s.stage.Select(id))
}

func (s *Server) handleToggleHero(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	respond(c, s.stage.ToggleHero(id))
}

type positionRequest struct {
	X *float64 `json:"x" binding:"required"`
	Y *float64 `json:"y" binding:"required"`
}

func (s *Server) handlePosition(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "x and y are required")
		return
	}
	respond(c, s.stage.UpdatePosition(id, geom.Point{X: *req.X, Y: *req.Y}))
}

func (s *Server) handleDropBlock(c *gin.Context) {
	b, ok := bindBlock(c)
	if !ok {
		return
	}
	respond(c, s.stage.DropBlock(b))
}

type reorderRequest struct {
	From *int `json:"from" binding:"required"`
	To   *int `json:"to" binding:"required"`
}

func (s *Server) handleReorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "from and to are required")
		return
	}
	respond(c, s.stage.ReorderBlocks(*req.From, *req.To))
}

func (s *Server) handleUpdateBlock(c *gin.Context) {
	i, ok := intParam(c, "index")
	if !ok {
		return
	}
	b, ok := bindBlock(c)
	if !ok {
		return
	}
	respond(c, s.stage.UpdateBlock(i, b))
}

func (s *Server) handleRemoveBlock(c *gin.Context) {
	i, ok := intParam(c, "index")
	if !ok {
		return
	}
	respond(c, s.stage.RemoveBlock(i))
}

func (s *Server) handleAppendSubBlock(c *gin.Context) {
	i, ok := intParam(c, "index")
	if !ok {
		return
	}
	b, ok := bindBlock(c)
	if !ok {
		return
	}
	respond(c, s.stage.AppendSubBlock(i, b))
}

func (s *Server) handleRun(c *gin.Context) {
	runs := s.stage.Run(s.lifetime)
	c.JSON(http.StatusOK, gin.H{"ok": true, "runs": runs})
}

func (s *Server) handleReset(c *gin.Context) {
	s.stage.Reset()
	respond(c, true)
}

func (s *Server) handleCollisions(c *gin.Context) {
	pairs := s.stage.Collisions()
	if pairs == nil {
		pairs = []stage.CollisionPair{}
	}
	c.JSON(http.StatusOK, gin.H{"policy": s.stage.Policy(), "pairs": pairs})
}

func (s *Server) handleRender(c *gin.Context) {
	opts := s.render
	if raw := c.Query("scale"); raw != "" {
		scale, err := strconv.ParseFloat(raw, 64)
		if err != nil || scale <= 0 {
			badRequest(c, "invalid scale")
			return
		}
		opts.Scale = scale
	}

	snaps := s.stage.Snapshots()
	sprites := make([]stream.SpriteEvent, 0, len(snaps))
	for _, snap := range snaps {
		sprites = append(sprites, snap.Event())
	}

	c.Header("Content-Type", "image/png")
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	if err := render.WritePNG(c.Writer, sprites, opts); err != nil {
		s.log.Warn("render failed", "error", err)
	}
}
