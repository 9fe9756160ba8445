package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

type fakeModel struct {
	text    string
	err     error
	prompts []string
	opts    llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, m := range messages {
		for _, p := range m.Parts {
			if tc, ok := p.(llms.TextContent); ok {
				f.prompts = append(f.prompts, tc.Text)
			}
		}
	}
	for _, o := range options {
		o(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.text}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestGenerateTrimsAndPassesMaxTokens(t *testing.T) {
	model := &fakeModel{text: "  Keep going!  \n"}
	c := New(Config{Provider: ProviderOpenAI, MaxTokens: 120}, zap.NewNop(), WithModel(model))

	out, err := c.Generate(context.Background(), "celebrate")
	require.NoError(t, err)
	assert.Equal(t, "Keep going!", out)
	assert.Equal(t, []string{"celebrate"}, model.prompts)
	assert.Equal(t, 120, model.opts.MaxTokens)
}

func TestGenerateEmptyResponse(t *testing.T) {
	c := New(Config{Provider: ProviderOpenAI}, zap.NewNop(), WithModel(&fakeModel{text: "   "}))

	_, err := c.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGenerateProviderError(t *testing.T) {
	boom := errors.New("upstream 503")
	c := New(Config{Provider: ProviderAnthropic}, zap.NewNop(), WithModel(&fakeModel{err: boom}))

	_, err := c.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestGenerateMissingKey(t *testing.T) {
	for _, provider := range []string{ProviderOpenAI, ProviderAnthropic} {
		c := New(Config{Provider: provider}, zap.NewNop())
		_, err := c.Generate(context.Background(), "x")
		assert.ErrorIs(t, err, ErrNotConfigured, provider)
	}
}

func TestStubProvider(t *testing.T) {
	c := New(Config{Provider: ProviderStub}, zap.NewNop())

	out, err := c.Generate(context.Background(), "anything")
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	out, err = c.Generate(context.Background(), `Return JSON with "keyTruth"`)
	require.NoError(t, err)
	assert.Contains(t, out, `"goals"`)
}
