package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"railsim/internal/agent"
	"railsim/internal/geo"
	"railsim/internal/publisher"
	"railsim/internal/sim"
)

// NewRouter builds the control surface for the operator dashboard. Control
// POSTs only enqueue a command; the resulting state is observed through the
// next published snapshot, so they answer 202 with no result body.
func NewRouter(eng *sim.Engine, hub *Hub) *gin.Engine {
	r := gin.Default()

	// CORS for the dashboard frontend
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		s := api.Group("/simulation")
		{
			s.POST("/start", func(c *gin.Context) {
				eng.Start()
				c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
			})
			s.POST("/reset", func(c *gin.Context) {
				eng.Reset()
				c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
			})
			s.POST("/agents/:id/alert", func(c *gin.Context) {
				// late or unknown alerts are deliberate no-ops, still 202
				eng.RaiseAlert(c.Param("id"))
				c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
			})
			s.GET("/agents", func(c *gin.Context) {
				withPaths := c.Query("paths") != ""
				agents := eng.Snapshot()
				views := make([]agentView, len(agents))
				for i, a := range agents {
					views[i] = newAgentView(a, withPaths)
				}
				c.JSON(http.StatusOK, gin.H{"agents": views})
			})
			s.GET("/ws", func(c *gin.Context) {
				hub.Serve(c.Writer, c.Request)
			})
		}
	}

	return r
}

type agentView struct {
	ID           string                  `json:"id"`
	Lat          float64                 `json:"lat"`
	Lon          float64                 `json:"lon"`
	Bearing      float64                 `json:"bearing"`
	Progress     float64                 `json:"progress"`
	Status       agent.Status            `json:"status"`
	HasHazard    bool                    `json:"hasHazard"`
	AlertActive  bool                    `json:"alertActive"`
	Hazard       *publisher.HazardMarker `json:"hazard,omitempty"`
	Path         []geo.Point             `json:"path,omitempty"`
	LengthMeters float64                 `json:"lengthMeters,omitempty"`
}

func newAgentView(a agent.Agent, withPath bool) agentView {
	v := agentView{
		ID:          a.ID,
		Lat:         a.Position.Lat,
		Lon:         a.Position.Lon,
		Bearing:     a.Bearing,
		Progress:    a.Progress,
		Status:      a.Status,
		HasHazard:   a.HasHazard,
		AlertActive: a.AlertActive,
	}
	if a.HasHazard && a.Status == agent.StatusMoving {
		hp := a.HazardPoint()
		v.Hazard = &publisher.HazardMarker{Lat: hp.Lat, Lon: hp.Lon, Threshold: a.HazardThreshold}
	}
	if withPath {
		v.Path = a.Path
		v.LengthMeters = a.Path.LengthMeters()
	}
	return v
}
