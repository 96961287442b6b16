package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Storyreel.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Storyreel.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Storyreel.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProjectAdd imports a script file as a new project.
func (c *Client) ProjectAdd(req ProjectAddRequest) (*ProjectAddResponse, error) {
	var resp ProjectAddResponse
	if err := c.client.Call("Storyreel.ProjectAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WorkflowList returns workflows optionally filtered by statuses.
func (c *Client) WorkflowList(statuses []string) (*WorkflowListResponse, error) {
	var resp WorkflowListResponse
	req := WorkflowListRequest{Statuses: statuses}
	if err := c.client.Call("Storyreel.WorkflowList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WorkflowDescribe returns full step detail for a single workflow.
func (c *Client) WorkflowDescribe(id string) (*WorkflowDescribeResponse, error) {
	var resp WorkflowDescribeResponse
	req := WorkflowDescribeRequest{ID: id}
	if err := c.client.Call("Storyreel.WorkflowDescribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobList returns jobs optionally filtered by statuses.
func (c *Client) JobList(statuses []string) (*JobListResponse, error) {
	var resp JobListResponse
	req := JobListRequest{Statuses: statuses}
	if err := c.client.Call("Storyreel.JobList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobCancel cancels a single job.
func (c *Client) JobCancel(id string) (*JobCancelResponse, error) {
	var resp JobCancelResponse
	req := JobCancelRequest{ID: id}
	if err := c.client.Call("Storyreel.JobCancel", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelProjectJobs cancels every active job for a project.
func (c *Client) CancelProjectJobs(projectID string) (*CancelProjectJobsResponse, error) {
	var resp CancelProjectJobsResponse
	req := CancelProjectJobsRequest{ProjectID: projectID}
	if err := c.client.Call("Storyreel.CancelProjectJobs", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StoreHealth retrieves detailed database diagnostics.
func (c *Client) StoreHealth() (*StoreHealthResponse, error) {
	var resp StoreHealthResponse
	if err := c.client.Call("Storyreel.StoreHealth", StoreHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Storyreel.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Storyreel.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
