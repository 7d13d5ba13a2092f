package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fiberplane/fp-sub000/internal/notebook"
)

// Profile is the authenticated user's profile.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// GetProfile fetches the profile of the authenticated user.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - *Profile: The user's profile
//   - error: Any error that occurred
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/profile", nil)
	if err != nil {
		return nil, err
	}

	var profile Profile
	if err := parseResponse(resp, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetNotebook fetches a notebook snapshot, including its current revision.
//
// Parameters:
//   - ctx: Context for cancellation
//   - notebookID: The notebook identifier
//
// Returns:
//   - *notebook.Notebook: The notebook
//   - error: Any error that occurred
func (c *Client) GetNotebook(ctx context.Context, notebookID string) (*notebook.Notebook, error) {
	id, err := pathParam("notebookId", notebookID)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/api/notebooks/"+id, nil)
	if err != nil {
		return nil, err
	}

	var nb notebook.Notebook
	if err := parseResponse(resp, &nb); err != nil {
		return nil, fmt.Errorf("notebook %s: %w", notebookID, err)
	}
	return &nb, nil
}

// AppendCells appends cells to the end of a notebook. The server assigns ids
// to cells sent with an empty id.
//
// Parameters:
//   - ctx: Context for cancellation
//   - notebookID: The notebook identifier
//   - cells: The cells to append
//
// Returns:
//   - []notebook.Cell: The cells as stored by the server
//   - error: Any error that occurred
func (c *Client) AppendCells(ctx context.Context, notebookID string, cells ...notebook.Cell) ([]notebook.Cell, error) {
	id, err := pathParam("notebookId", notebookID)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/notebooks/"+id+"/cells", cells)
	if err != nil {
		return nil, err
	}

	var created []notebook.Cell
	if err := parseResponse(resp, &created); err != nil {
		return nil, fmt.Errorf("append cells to %s: %w", notebookID, err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("append cells to %s: no cells returned", notebookID)
	}
	return created, nil
}

// NotebookSummary is a notebook as returned by the listing endpoints.
type NotebookSummary struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Labels    []notebook.Label `json:"labels,omitempty"`
}

// ListNotebooks lists the notebooks of a workspace. An empty workspace id
// lists the notebooks of the token's default workspace.
//
// Parameters:
//   - ctx: Context for cancellation
//   - workspaceID: The workspace identifier (may be empty)
//
// Returns:
//   - []NotebookSummary: The notebooks
//   - error: Any error that occurred
func (c *Client) ListNotebooks(ctx context.Context, workspaceID string) ([]NotebookSummary, error) {
	path := "/api/notebooks"
	if workspaceID != "" {
		id, err := pathParam("workspaceId", workspaceID)
		if err != nil {
			return nil, err
		}
		path = "/api/workspaces/" + id + "/notebooks"
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var notebooks []NotebookSummary
	if err := parseResponse(resp, &notebooks); err != nil {
		return nil, err
	}
	return notebooks, nil
}
