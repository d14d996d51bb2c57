// Package genailive connects the voice controller to the Gemini Live API
// through the google.golang.org/genai SDK.
package genailive

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/live"
)

const (
	DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultVoice = "Zephyr"
)

// session is the subset of *genai.Session the adapter uses.
type session interface {
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

type dialFunc func(ctx context.Context, model string, cfg *genai.LiveConnectConfig) (session, error)

// Connector implements live.Connector.
type Connector struct {
	model string
	voice string
	dial  dialFunc
}

var _ live.Connector = (*Connector)(nil)

type Option func(*Connector)

func WithModel(model string) Option {
	return func(c *Connector) {
		if model != "" {
			c.model = model
		}
	}
}

func WithVoice(voice string) Option {
	return func(c *Connector) {
		if voice != "" {
			c.voice = voice
		}
	}
}

// New creates a Connector backed by a Gemini API client.
func New(ctx context.Context, apiKey string, opts ...Option) (*Connector, error) {
	if apiKey == "" {
		return nil, core.NewInvalidRequestErrorWithParam("api key must not be empty", "api_key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	c := newConnector(func(ctx context.Context, model string, cfg *genai.LiveConnectConfig) (session, error) {
		return client.Live.Connect(ctx, model, cfg)
	}, opts...)
	return c, nil
}

func newConnector(dial dialFunc, opts ...Option) *Connector {
	c := &Connector{model: DefaultModel, voice: DefaultVoice, dial: dial}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connector) Model() string { return c.model }

func (c *Connector) Connect(ctx context.Context, cfg live.ConnectConfig) (live.Conn, error) {
	s, err := c.dial(ctx, c.model, c.connectConfig(cfg))
	if err != nil {
		return nil, core.NewProviderError("gemini-live", err)
	}
	return &conn{s: s, mimeType: live.InputFormat.MIMEType()}, nil
}

func (c *Connector) connectConfig(cfg live.ConnectConfig) *genai.LiveConnectConfig {
	return &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SystemInstruction:  genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser),
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: c.voice},
			},
		},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
}

type conn struct {
	s        session
	mimeType string
}

func (c *conn) SendAudio(pcm []byte) error {
	return c.s.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: pcm, MIMEType: c.mimeType},
	})
}

// Receive skips messages that carry nothing for the controller, such as
// setup acknowledgements.
func (c *conn) Receive() (live.ServerEvent, error) {
	for {
		msg, err := c.s.Receive()
		if err != nil {
			return live.ServerEvent{}, err
		}
		if ev, ok := toServerEvent(msg); ok {
			return ev, nil
		}
	}
}

func (c *conn) Close() error { return c.s.Close() }

func toServerEvent(msg *genai.LiveServerMessage) (live.ServerEvent, bool) {
	if msg == nil || msg.ServerContent == nil {
		return live.ServerEvent{}, false
	}
	sc := msg.ServerContent
	var ev live.ServerEvent
	if sc.InputTranscription != nil {
		ev.InputTranscript = sc.InputTranscription.Text
	}
	if sc.OutputTranscription != nil {
		ev.OutputTranscript = sc.OutputTranscription.Text
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			ev.Audio = append(ev.Audio, part.InlineData.Data)
		}
	}
	ev.Interrupted = sc.Interrupted
	empty := ev.InputTranscript == "" && ev.OutputTranscript == "" && len(ev.Audio) == 0 && !ev.Interrupted
	return ev, !empty
}
