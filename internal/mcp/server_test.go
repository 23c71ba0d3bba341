package mcp

import (
	"context"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ykzou1214/musictoolkit/internal/artifact"
	"github.com/ykzou1214/musictoolkit/internal/pipeline"
	"github.com/ykzou1214/musictoolkit/internal/score"
)

func newTestServer(t *testing.T) (*Server, *artifact.Store) {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	orch := pipeline.New(nil, score.NewBuilder(), nil, nil, store)
	return NewServer(orch, store, "test"), store
}

func TestMusicProcessingPromptInterpolatesArguments(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleMusicProcessingPrompt(context.Background(), &sdkmcp.GetPromptRequest{
		Params: &sdkmcp.GetPromptParams{
			Name: "music_processing",
			Arguments: map[string]string{
				"task_type":         "transcription",
				"input_description": "a hummed melody recorded on a phone",
				"desired_output":    "a printable score",
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)

	content, ok := res.Messages[0].Content.(*sdkmcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, content.Text, "Task Type: transcription")
	assert.Contains(t, content.Text, "Input: a hummed melody recorded on a phone")
	assert.Contains(t, content.Text, "Desired Output: a printable score")
}

func TestOutputResourceListsArtifacts(t *testing.T) {
	s, store := newTestServer(t)

	_, err := store.Save(artifact.KindMusicXML, []byte("<score-partwise/>"))
	require.NoError(t, err)

	res, err := s.handleOutputResource(context.Background(), &sdkmcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)

	assert.Equal(t, outputResourceURI, res.Contents[0].URI)
	assert.Contains(t, res.Contents[0].Text, "generated_")
	assert.Contains(t, res.Contents[0].Text, `"count": 1`)
}
