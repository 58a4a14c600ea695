package plusdomains

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/delegate/pkg/apiclient"
)

// DefaultBaseURL is the root of the Google+ Domains v1 REST API.
const DefaultBaseURL = "https://www.googleapis.com/plusDomains/v1"

// UserMe addresses the user the credential impersonates.
const UserMe = "me"

var (
	ErrNoUserID     = errors.New("plusdomains: user id is required")
	ErrNoActivityID = errors.New("plusdomains: activity id is required")
	ErrNoContent    = errors.New("plusdomains: activity has no content")

	// ErrEmptyResponse means a 2xx answer carried no activity id.
	ErrEmptyResponse = errors.New("plusdomains: response carried no activity")
)

// Service groups the API's resources.
type Service struct {
	Activities *ActivitiesService
}

// NewService wraps an authorized apiclient.Client.
func NewService(c *apiclient.Client) *Service {
	return &Service{Activities: &ActivitiesService{client: c}}
}

// ActivitiesService covers the activities resource.
type ActivitiesService struct {
	client *apiclient.Client
}

// Insert posts activity to userID's stream and returns the stored activity.
func (s *ActivitiesService) Insert(ctx context.Context, userID string, activity *Activity) (*Activity, error) {
	if userID == "" {
		return nil, ErrNoUserID
	}
	if activity == nil || activity.Object == nil || activity.Object.OriginalContent == "" {
		return nil, ErrNoContent
	}

	return requireID(apiclient.Do[Activity](ctx, s.client, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/people/" + url.PathEscape(userID) + "/activities",
		Body:   activity,
	}))
}

// Get fetches one activity by id.
func (s *ActivitiesService) Get(ctx context.Context, activityID string) (*Activity, error) {
	if activityID == "" {
		return nil, ErrNoActivityID
	}

	return requireID(apiclient.Do[Activity](ctx, s.client, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/activities/" + url.PathEscape(activityID),
	}))
}

func requireID(a *Activity, err error) (*Activity, error) {
	if err != nil {
		return nil, err
	}
	if a.ID == "" {
		return nil, ErrEmptyResponse
	}
	return a, nil
}
