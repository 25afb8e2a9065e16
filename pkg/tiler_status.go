package pkg

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"github.com/ecopia-map/globe_tiler/internal/quadtree"
	"github.com/ecopia-map/globe_tiler/internal/scene"
	"github.com/ecopia-map/globe_tiler/internal/tiler"
)

type StatusResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type StatsData struct {
	Tree  quadtree.Stats   `json:"tree"`
	Scene scene.SceneStats `json:"scene"`
}

type ElevationData struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Elevation float64 `json:"elevation"`
}

type LoadImageryRequest struct {
	Input       string `json:"input" binding:"required"`
	Recursive   bool   `json:"recursive"`
	Concurrency int    `json:"concurrency"`
}

// Read-only view of a running tree over HTTP, plus imagery imports
type StatusServer struct {
	tree   quadtree.ITileTree
	scene  *scene.RecordingScene
	loader *ImageryLoader
	opts   *tiler.TilerOptions
	router *gin.Engine
}

func NewStatusServer(tree quadtree.ITileTree, sceneIntegration *scene.RecordingScene, loader *ImageryLoader, opts *tiler.TilerOptions) *StatusServer {
	gin.SetMode(gin.ReleaseMode)
	s := &StatusServer{
		tree:   tree,
		scene:  sceneIntegration,
		loader: loader,
		opts:   opts,
		router: gin.New(),
	}
	s.router.Use(gin.Recovery())

	s.router.GET("/stats", s.stats)
	s.router.GET("/elevation", s.elevation)

	tiles := s.router.Group("/tiles")
	tiles.GET("", s.visibleTiles)
	tiles.GET("/:code", s.tile)

	imagery := s.router.Group("/imagery")
	imagery.POST("/load", s.loadImagery)
	return s
}

func (s *StatusServer) Handler() http.Handler {
	return s.router
}

// Serves in the background, the returned function shuts the server down
func (s *StatusServer) ListenAndServe(addr string) func() {
	srv := &http.Server{Addr: addr, Handler: s.router}
	go func() {
		glog.Infof("status server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Errorf("status server: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			glog.Warningf("status server shutdown: %v", err)
		}
	}
}

func (s *StatusServer) stats(c *gin.Context) {
	data := StatsData{Tree: s.tree.Stats()}
	if s.scene != nil {
		data.Scene = s.scene.Stats()
	}
	c.JSON(http.StatusOK, StatusResponse{Success: true, Data: data})
}

func (s *StatusServer) elevation(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		c.JSON(http.StatusBadRequest, StatusResponse{Message: "lat and lon must be valid degrees"})
		return
	}

	elevation, ok := s.tree.ElevationAt(lat, lon)
	if !ok {
		c.JSON(http.StatusNotFound, StatusResponse{Message: "no constructed tile covers the position"})
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Success: true, Data: ElevationData{Lat: lat, Lon: lon, Elevation: elevation}})
}

func (s *StatusServer) tile(c *gin.Context) {
	code := c.Param("code")
	info, ok := s.tree.Lookup(code)
	if !ok {
		c.JSON(http.StatusNotFound, StatusResponse{Message: fmt.Sprintf("tile %s not in the tree", code)})
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Success: true, Data: info})
}

func (s *StatusServer) visibleTiles(c *gin.Context) {
	if s.scene == nil {
		c.JSON(http.StatusOK, StatusResponse{Success: true, Data: []string{}})
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Success: true, Data: s.scene.VisibleCodes()})
}

func (s *StatusServer) loadImagery(c *gin.Context) {
	if s.loader == nil {
		c.JSON(http.StatusServiceUnavailable, StatusResponse{Message: "imagery loading disabled"})
		return
	}

	var req LoadImageryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, StatusResponse{Message: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	opts := s.opts.Copy()
	opts.TilerLoadImageryOptions = &tiler.TilerLoadImageryOptions{
		Input:       req.Input,
		Recursive:   req.Recursive,
		Concurrency: req.Concurrency,
	}
	report, err := s.loader.Load(opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, StatusResponse{Message: err.Error(), Data: report})
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Success: true, Data: report})
}
