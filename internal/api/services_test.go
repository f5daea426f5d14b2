package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetGroupOrDefault(t *testing.T) {
	assert.Equal(t, "default", Target{}.GroupOrDefault())
	assert.Equal(t, "blue", Target{Group: "blue"}.GroupOrDefault())
}

func TestTargetsInGroup(t *testing.T) {
	detail := ServiceDetail{
		Targets: []Target{
			{ID: uuid.New(), Group: ""},        // legacy target, implicitly default
			{ID: uuid.New(), Group: "default"},
			{ID: uuid.New(), Group: "canary"},
		},
	}

	assert.Len(t, detail.TargetsInGroup("default"), 2)
	assert.Len(t, detail.TargetsInGroup("canary"), 1)
	assert.Empty(t, detail.TargetsInGroup("blue"))
}

func TestCreateTarget(t *testing.T) {
	serviceID := uuid.New()
	instanceID := uuid.New()
	targetID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/service/"+serviceID.String()+"/target", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var payload createTargetPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, instanceID, payload.InstanceID)
		assert.Equal(t, 8080, payload.Port)
		assert.Equal(t, "canary", payload.Group)
		json.NewEncoder(w).Encode(createTargetResponse{TargetID: targetID})
	})

	client, _ := testClient(t, mux, validSession())
	got, err := client.CreateTarget(context.Background(), serviceID, instanceID, 8080, "canary")
	require.NoError(t, err)
	assert.Equal(t, targetID, got)
}

func TestRemoveTarget(t *testing.T) {
	serviceID := uuid.New()
	targetID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/service/"+serviceID.String()+"/target/"+targetID.String(), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusOK)
	})

	client, _ := testClient(t, mux, validSession())
	require.NoError(t, client.RemoveTarget(context.Background(), serviceID, targetID))
}

func TestCreateServiceSendsEmptyTargetList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/service", func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		// The control plane rejects null target lists.
		assert.Equal(t, "[]", string(raw["instance_targets"]))
		json.NewEncoder(w).Encode(CreateServiceResponse{ServiceID: uuid.New()})
	})

	client, _ := testClient(t, mux, validSession())
	_, err := client.CreateService(context.Background(), CreateServiceRequest{
		Region: "dev",
		Name:   "web",
		Host:   "web.example.com",
		Configuration: HTTPServiceConfig{
			Locations: []HTTPLocation{{
				Path:   "/",
				Target: HTTPLocationTarget{Type: "instance_group", Group: DefaultTargetGroup},
			}},
		},
	})
	require.NoError(t, err)
}
