package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/edulab/buildci/pkg/buildlog"
	"github.com/edulab/buildci/pkg/buildspec"
	"github.com/edulab/buildci/pkg/dispatcher"
	"github.com/edulab/buildci/pkg/imagecache"
	"github.com/edulab/buildci/pkg/protocol"
	"github.com/edulab/buildci/pkg/store"
	"github.com/edulab/buildci/pkg/token"
	"github.com/edulab/buildci/pkg/utils"
)

type apiHandler struct {
	store    *store.Store
	disp     *dispatcher.Dispatcher
	specs    *buildspec.Cache
	recorder *buildlog.Recorder
	issuer   *token.Issuer
	images   *imagecache.Tracker
}

func newApiHandler(s *store.Store, disp *dispatcher.Dispatcher, specs *buildspec.Cache,
	recorder *buildlog.Recorder, issuer *token.Issuer, images *imagecache.Tracker, r *echo.Echo) {
	h := &apiHandler{
		store:    s,
		disp:     disp,
		specs:    specs,
		recorder: recorder,
		issuer:   issuer,
		images:   images,
	}

	r.Add(echo.POST, "/api/jobs", h.createJob)
	r.Add(echo.GET, "/api/jobs", h.listJobs)
	r.Add(echo.GET, "/api/jobs/:id", h.getJob)
	r.Add(echo.DELETE, "/api/jobs/:id", h.cancelJob)

	r.Add(echo.GET, "/api/exercises/:id/build-statistics", h.buildStatistics)
	r.Add(echo.DELETE, "/api/exercises/:id/build-config", h.evictBuildConfig)

	r.Add(echo.POST, "/api/tokens", h.issueToken)
	r.Add(echo.DELETE, "/api/participations/:id/tokens", h.revokeTokens)
	r.Add(echo.POST, "/api/participations/:id/vcs-access", h.recordAccess)
	r.Add(echo.GET, "/api/participations/:id/vcs-access", h.accessLog)

	r.Add(echo.POST, "/api/agents", h.registerAgent)
	r.Add(echo.DELETE, "/api/agents/:address", h.unregisterAgent)
	r.Add(echo.GET, "/api/agents", h.listAgents)

	r.Add(echo.GET, "/api/images/stale", h.staleImages)
}

type stageRequest struct {
	Name  string `json:"name"`
	Tasks []struct {
		Name    string `json:"name"`
		Kind    string `json:"kind"`
		Command string `json:"command"`
	} `json:"tasks"`
}

type createJobRequest struct {
	UserID          int64  `json:"userId"`
	ParticipationID int64  `json:"participationId"`
	CourseID        int64  `json:"courseId"`
	ExerciseID      int64  `json:"exerciseId"`
	CommitHash      string `json:"commitHash"`
	RepositoryType  string `json:"repositoryType"`
	RepositoryURI   string `json:"repositoryUri"`
	Name            string `json:"name"`
	TimeoutSeconds  int    `json:"timeoutSeconds"`

	ConfigVersion int64          `json:"configVersion"`
	DockerImage   string         `json:"dockerImage"`
	Stages        []stageRequest `json:"stages"`
}

type createJobResponse struct {
	ID string `json:"id"`
}

func (h *apiHandler) createJob(c echo.Context) error {
	var req createJobRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	config := buildspec.ExerciseConfig{
		ExerciseID:    req.ExerciseID,
		ConfigVersion: req.ConfigVersion,
		DockerImage:   req.DockerImage,
	}
	for _, stage := range req.Stages {
		sc := buildspec.StageConfig{Name: stage.Name}
		for _, task := range stage.Tasks {
			sc.Tasks = append(sc.Tasks, buildspec.TaskConfig{
				Name:    task.Name,
				Kind:    task.Kind,
				Command: task.Command,
			})
		}
		config.Stages = append(config.Stages, sc)
	}

	spec, err := h.specs.Resolve(config)
	if err != nil {
		return utils.HttpError(err)
	}

	// The agent clones with a short-lived repository token.
	accessToken := ""
	if req.UserID != 0 {
		tok, err := h.issuer.IssueToken(req.UserID, req.ParticipationID)
		if err != nil {
			return utils.HttpError(err)
		}
		accessToken = tok.Token
	}

	id, err := h.disp.Enqueue(c.Request().Context(), dispatcher.EnqueueRequest{
		ParticipationID: req.ParticipationID,
		CourseID:        req.CourseID,
		ExerciseID:      req.ExerciseID,
		CommitHash:      req.CommitHash,
		RepositoryType:  protocol.RepositoryType(req.RepositoryType),
		RepositoryURI:   req.RepositoryURI,
		AccessToken:     accessToken,
		Name:            req.Name,
		Spec:            spec,
		Timeout:         time.Duration(req.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return utils.HttpError(err)
	}

	return c.JSON(http.StatusCreated, createJobResponse{ID: id})
}

func (h *apiHandler) listJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, h.disp.ListJobs())
}

type jobResponse struct {
	Job    *store.BuildJob `json:"job"`
	Result *store.Result   `json:"result,omitempty"`
}

func (h *apiHandler) getJob(c echo.Context) error {
	job, err := h.store.GetBuildJob(c.Param("id"))
	if err != nil {
		return utils.HttpError(err)
	}

	resp := jobResponse{Job: job}
	if job.Status.IsTerminal() && job.Status != protocol.BuildStatusCancelled {
		if result, err := h.store.ResultForBuildJob(job.ID); err == nil {
			resp.Result = result
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *apiHandler) cancelJob(c echo.Context) error {
	if err := h.disp.Cancel(c.Request().Context(), c.Param("id")); err != nil {
		return utils.HttpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *apiHandler) buildStatistics(c echo.Context) error {
	exerciseID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid exercise id")
	}

	averages, err := h.recorder.AverageDurations(exerciseID)
	if err != nil {
		return utils.HttpError(err)
	}

	return c.JSON(http.StatusOK, averages)
}

// evictBuildConfig drops the compiled specification of an exercise so
// the next job compiles the current configuration. In-flight jobs keep
// the specification they were dispatched with.
func (h *apiHandler) evictBuildConfig(c echo.Context) error {
	exerciseID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid exercise id")
	}

	h.specs.Evict(exerciseID)
	return c.NoContent(http.StatusNoContent)
}

type issueTokenRequest struct {
	UserID          int64 `json:"userId"`
	ParticipationID int64 `json:"participationId"`
}

func (h *apiHandler) issueToken(c echo.Context) error {
	var req issueTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == 0 || req.ParticipationID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "user and participation ids are required")
	}

	tok, err := h.issuer.IssueToken(req.UserID, req.ParticipationID)
	if err != nil {
		return utils.HttpError(err)
	}

	return c.JSON(http.StatusCreated, tok)
}

func (h *apiHandler) revokeTokens(c echo.Context) error {
	participationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid participation id")
	}

	if err := h.issuer.RevokeForParticipation(participationID); err != nil {
		return utils.HttpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type recordAccessRequest struct {
	Direction  string `json:"direction"`
	CommitHash string `json:"commitHash"`
}

func (h *apiHandler) recordAccess(c echo.Context) error {
	participationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid participation id")
	}

	var req recordAccessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.issuer.RecordAccess(participationID, req.Direction); err != nil {
		return utils.HttpError(err)
	}
	if req.CommitHash != "" {
		h.issuer.AttachCommitHash(participationID, req.CommitHash)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *apiHandler) accessLog(c echo.Context) error {
	participationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid participation id")
	}

	entries, err := h.issuer.AccessLog(participationID)
	if err != nil {
		return utils.HttpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

type registerAgentRequest struct {
	Address  string `json:"address"`
	Capacity int    `json:"capacity"`
}

func (h *apiHandler) registerAgent(c echo.Context) error {
	var req registerAgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Address == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent address is required")
	}

	h.disp.RegisterAgent(req.Address, req.Capacity)
	return c.NoContent(http.StatusNoContent)
}

func (h *apiHandler) unregisterAgent(c echo.Context) error {
	h.disp.UnregisterAgent(c.Param("address"))
	return c.NoContent(http.StatusNoContent)
}

func (h *apiHandler) listAgents(c echo.Context) error {
	return c.JSON(http.StatusOK, h.disp.ListAgents())
}

// staleImages lists docker images unused since the given duration, for
// external cleanup tooling.
func (h *apiHandler) staleImages(c echo.Context) error {
	unusedFor, err := time.ParseDuration(c.QueryParam("unused_for"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid unused_for duration")
	}

	stale, err := h.images.ListStaleSince(time.Now().Add(-unusedFor))
	if err != nil {
		return utils.HttpError(err)
	}
	return c.JSON(http.StatusOK, stale)
}
