package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	"storyreel/internal/api"
	"storyreel/internal/daemon"
	"storyreel/internal/jobs"
	"storyreel/internal/logging"
	"storyreel/internal/logs"
	"storyreel/internal/project"
	"storyreel/internal/workflow"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Storyreel", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun storyreel stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	resp.Projects = status.Stats.Projects
	resp.Workflows, resp.Jobs = api.MergeStats(status.Stats)
	resp.Pipeline = api.FromStatusSummary(status.Pipeline)
	return nil
}

func (s *service) ProjectAdd(req ProjectAddRequest, resp *ProjectAddResponse) error {
	scriptPath := strings.TrimSpace(req.ScriptPath)
	if scriptPath == "" {
		return errors.New("project add requires a script path")
	}
	projectType, ok := project.ParseType(req.Type)
	if !ok {
		return fmt.Errorf("unknown project type %q", req.Type)
	}
	s.log().Debug("project add requested", logging.String("script_path", scriptPath))
	result, err := s.daemon.AddProject(s.ctx, daemon.AddProjectRequest{
		ScriptPath: scriptPath,
		Title:      req.Title,
		Type:       projectType,
		VoiceID:    req.VoiceID,
		StyleID:    req.StyleID,
	})
	if err != nil {
		return err
	}
	resp.Project = api.FromProject(result.Project)
	resp.Reused = result.Reused
	if result.Workflow != nil {
		resp.WorkflowID = result.Workflow.ID
	}
	return nil
}

func (s *service) WorkflowList(req WorkflowListRequest, resp *WorkflowListResponse) error {
	statuses := make([]workflow.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := workflow.ParseStatus(status)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	wfs, err := s.daemon.ListWorkflows(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Workflows = make([]Workflow, 0, len(wfs))
	for _, wf := range wfs {
		if wf == nil {
			continue
		}
		dto := api.FromWorkflow(wf, false)
		s.fillProjectTitle(&dto, wf.ProjectID)
		resp.Workflows = append(resp.Workflows, dto)
	}
	return nil
}

func (s *service) WorkflowDescribe(req WorkflowDescribeRequest, resp *WorkflowDescribeResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("workflow describe requires an id")
	}
	wf, err := s.daemon.GetWorkflow(s.ctx, id)
	if err != nil {
		return err
	}
	if wf == nil {
		return fmt.Errorf("workflow %s not found", id)
	}
	dto := api.FromWorkflow(wf, true)
	s.fillProjectTitle(&dto, wf.ProjectID)
	resp.Workflow = dto
	return nil
}

// fillProjectTitle decorates a workflow DTO with its project title. Lookup
// failures leave the title empty rather than failing the listing.
func (s *service) fillProjectTitle(dto *Workflow, projectID string) {
	p, err := s.daemon.GetProject(s.ctx, projectID)
	if err != nil || p == nil {
		return
	}
	dto.ProjectTitle = p.Title
}

func (s *service) JobList(req JobListRequest, resp *JobListResponse) error {
	statuses := make([]jobs.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := jobs.ParseStatus(status)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	list, err := s.daemon.ListJobs(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Jobs = api.FromJobs(list)
	return nil
}

func (s *service) JobCancel(req JobCancelRequest, resp *JobCancelResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("job cancel requires an id")
	}
	s.log().Debug("job cancel requested", logging.String(logging.FieldJobID, id))
	cancelled, err := s.daemon.CancelJob(s.ctx, id)
	if err != nil {
		return err
	}
	resp.Cancelled = cancelled
	if cancelled {
		s.log().Info("job cancelled via IPC",
			logging.String(logging.FieldEventType, "job_cancel"),
			logging.String(logging.FieldJobID, id))
	}
	return nil
}

func (s *service) CancelProjectJobs(req CancelProjectJobsRequest, resp *CancelProjectJobsResponse) error {
	projectID := strings.TrimSpace(req.ProjectID)
	if projectID == "" {
		return errors.New("cancel project jobs requires a project id")
	}
	s.log().Debug("project job cancel requested", logging.String(logging.FieldProjectID, projectID))
	cancelled, err := s.daemon.CancelProjectJobs(s.ctx, projectID)
	if err != nil {
		return err
	}
	resp.Cancelled = cancelled
	s.log().Info("project jobs cancelled via IPC",
		logging.String(logging.FieldEventType, "project_jobs_cancel"),
		logging.String(logging.FieldProjectID, projectID),
		logging.Int("cancelled_count", cancelled))
	return nil
}

func (s *service) StoreHealth(_ StoreHealthRequest, resp *StoreHealthResponse) error {
	health, err := s.daemon.StoreHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.Health = api.FromStoreHealth(health)
	if err != nil {
		return err
	}
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
