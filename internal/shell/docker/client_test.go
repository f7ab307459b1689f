package docker

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func skipIfNoDocker(t *testing.T) Client {
	t.Helper()
	cli, err := NewDockerClient("")
	if err != nil {
		t.Skip("Docker not available:", err)
	}
	if err := cli.Ping(); err != nil {
		cli.Close()
		t.Skip("Docker not reachable:", err)
	}
	return cli
}

func cleanupContainer(t *testing.T, cli Client, containerID string) {
	t.Helper()
	timeout := 5 * time.Second
	cli.StopContainer(containerID, &timeout)
	cli.RemoveContainer(containerID, RemoveOptions{Force: true, RemoveVolumes: true})
}

// Test container name prefix to identify test containers
const testPrefix = "defectdetect-test-"

// =============================================================================
// Error Tests
// =============================================================================

func TestDockerError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *DockerError
		want string
	}{
		{
			name: "with id",
			err:  NewDockerError("StartContainer", "container", "abc123", "container not found", ErrContainerNotFound),
			want: "StartContainer container abc123: container not found",
		},
		{
			name: "without id",
			err:  NewDockerError("CreateNetwork", "network", "", "network already exists", ErrNetworkAlreadyExists),
			want: "CreateNetwork network: network already exists",
		},
		{
			name: "op only",
			err:  NewDockerError("Ping", "", "", "failed to ping docker", ErrConnectionFailed),
			want: "Ping: failed to ping docker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestDockerError_Unwrap(t *testing.T) {
	err := NewDockerError("BuildImage", "image", "app:latest", "step failed", ErrImageBuildFailed)
	assert.True(t, errors.Is(err, ErrImageBuildFailed))

	var dockerErr *DockerError
	require.True(t, errors.As(error(err), &dockerErr))
	assert.Equal(t, "BuildImage", dockerErr.Op)
}

// =============================================================================
// Build Stream Tests
// =============================================================================

func TestDrainBuildStream_Success(t *testing.T) {
	stream := `{"stream":"Step 1/2 : FROM alpine\n"}
{"stream":" ---> abc\n"}
{"stream":"Successfully built abc\n"}
`
	err := drainBuildStream(strings.NewReader(stream))
	assert.NoError(t, err)
}

func TestDrainBuildStream_Error(t *testing.T) {
	stream := `{"stream":"Step 1/2 : FROM alpine\n"}
{"error":"build failed","errorDetail":{"message":"executor failed running: exit code 1"}}
`
	err := drainBuildStream(strings.NewReader(stream))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit code 1")
}

func TestDrainBuildStream_ErrorWithoutDetail(t *testing.T) {
	err := drainBuildStream(strings.NewReader(`{"error":"build failed"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build failed")
}

func TestDrainBuildStream_Garbage(t *testing.T) {
	err := drainBuildStream(strings.NewReader("not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode build output")
}

func TestDrainBuildStream_Empty(t *testing.T) {
	assert.NoError(t, drainBuildStream(strings.NewReader("")))
}

// =============================================================================
// Constants Tests
// =============================================================================

func TestContainerStatus_Values(t *testing.T) {
	assert.Equal(t, ContainerStatus("running"), ContainerStatusRunning)
	assert.Equal(t, ContainerStatus("exited"), ContainerStatusExited)
	assert.Equal(t, ContainerStatus("created"), ContainerStatusCreated)
}

func TestLabelConstants(t *testing.T) {
	assert.Equal(t, "com.defectdetect.managed", LabelManaged)
	assert.Equal(t, "com.defectdetect.stack", LabelStack)
	assert.Equal(t, "com.defectdetect.service", LabelService)
}

// =============================================================================
// Integration Tests (require a reachable Docker daemon)
// =============================================================================

func TestPing_Success(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	assert.NoError(t, cli.Ping())
}

func TestContainerLifecycle(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	if err := cli.PullImage("alpine:latest", PullOptions{}); err != nil {
		t.Skip("cannot pull alpine:", err)
	}

	name := testPrefix + "lifecycle"
	id, err := cli.CreateContainer(ContainerSpec{
		Name:    name,
		Image:   "alpine:latest",
		Command: []string{"sleep", "30"},
		Labels:  map[string]string{LabelManaged: "true"},
	})
	require.NoError(t, err)
	defer cleanupContainer(t, cli, id)

	require.NoError(t, cli.StartContainer(id))

	info, err := cli.InspectContainer(id)
	require.NoError(t, err)
	assert.Equal(t, name, info.Name)
	assert.Equal(t, ContainerStatusRunning, info.Status)

	list, err := cli.ListContainers(ListOptions{
		Filters: map[string]string{"label": LabelManaged + "=true"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	timeout := 2 * time.Second
	require.NoError(t, cli.StopContainer(id, &timeout))
	require.NoError(t, cli.RemoveContainer(id, RemoveOptions{Force: true}))

	_, err = cli.InspectContainer(id)
	assert.ErrorIs(t, err, ErrContainerNotFound)
}

func TestNetworkAndVolumeLifecycle(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	netID, err := cli.CreateNetwork(NetworkSpec{
		Name:   testPrefix + "net",
		Labels: map[string]string{LabelManaged: "true"},
	})
	require.NoError(t, err)
	assert.NoError(t, cli.RemoveNetwork(netID))

	volName, err := cli.CreateVolume(VolumeSpec{
		Name:   testPrefix + "vol",
		Labels: map[string]string{LabelManaged: "true"},
	})
	require.NoError(t, err)
	assert.NoError(t, cli.RemoveVolume(volName, true))
}

func TestImageExists_False(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	exists, err := cli.ImageExists("defectdetect-nonexistent-image:never")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRemoveNetwork_NotFound(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	err := cli.RemoveNetwork("defectdetect-missing-network")
	assert.ErrorIs(t, err, ErrNetworkNotFound)
}
