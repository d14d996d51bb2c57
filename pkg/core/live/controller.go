// Package live runs a push-to-talk voice conversation against a live audio
// backend and reconciles it into a text transcript.
//
// All state is owned by the goroutine running Controller.Run. Commands and
// backend events are serialized through its select loop, so the Sink sees a
// single ordered stream of calls.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
)

// DefaultGraceDelay is how long after release the turn is finalized.
const DefaultGraceDelay = 500 * time.Millisecond

// ErrClosed is returned by command methods once Run has returned.
var ErrClosed = errors.New("live: controller closed")

type Config struct {
	Connector Connector
	Sink      Sink

	Language    chat.Language
	Personality string
	// History is the chat transcript the conversation continues from.
	History []chat.Message

	GraceDelay   time.Duration
	OutputFormat AudioFormat
	Logger       *slog.Logger
	Now          func() time.Time
	NewID        func() string
}

type commandKind int

const (
	cmdPressTalk commandKind = iota + 1
	cmdReleaseTalk
	cmdMicAudio
	cmdReconfigure
	cmdFinish
	cmdMediaError
)

type command struct {
	kind        commandKind
	pcm         []byte
	language    chat.Language
	personality string
	reason      string
}

type backendEvent struct {
	gen int
	ev  ServerEvent
	err error
}

type Controller struct {
	connector Connector
	sink      Sink
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	language    chat.Language
	personality string
	history     []chat.Message
	graceDelay  time.Duration

	cmds   chan command
	events chan backendEvent
	done   chan struct{}

	// Owned by the Run goroutine.
	epoch         time.Time
	state         State
	micOn         bool
	hasUserSpoken bool
	inputText     strings.Builder
	outputText    strings.Builder
	pending       [][]byte
	sched         *Scheduler
	messages      []VoiceMessage
	conn          Conn
	connGen       int
	pumpCancel    context.CancelFunc
	grace         loopTimer
	drain         loopTimer
}

func NewController(cfg Config) (*Controller, error) {
	if cfg.Connector == nil {
		return nil, core.NewInvalidRequestError("live: connector is required")
	}
	if cfg.Sink == nil {
		return nil, core.NewInvalidRequestError("live: sink is required")
	}
	c := &Controller{
		connector:   cfg.Connector,
		sink:        cfg.Sink,
		logger:      cfg.Logger,
		now:         cfg.Now,
		newID:       cfg.NewID,
		language:    cfg.Language,
		personality: cfg.Personality,
		history:     append([]chat.Message(nil), cfg.History...),
		graceDelay:  cfg.GraceDelay,
		cmds:        make(chan command, 64),
		events:      make(chan backendEvent, 64),
		done:        make(chan struct{}),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.language == "" {
		c.language = chat.LanguageJapanese
	}
	if c.graceDelay <= 0 {
		c.graceDelay = DefaultGraceDelay
	}
	format := cfg.OutputFormat
	if format.SampleRate == 0 {
		format = OutputFormat
	}
	c.sched = NewScheduler(format)
	c.messages = SeedHistory(c.history)
	c.epoch = c.now()
	return c, nil
}

func (c *Controller) PressTalk() error   { return c.send(command{kind: cmdPressTalk}) }
func (c *Controller) ReleaseTalk() error { return c.send(command{kind: cmdReleaseTalk}) }
func (c *Controller) Finish() error      { return c.send(command{kind: cmdFinish}) }

// MicAudio queues a microphone frame in InputFormat.
func (c *Controller) MicAudio(pcm []byte) error {
	return c.send(command{kind: cmdMicAudio, pcm: pcm})
}

// Reconfigure restarts the backend connection with a new language and personality.
func (c *Controller) Reconfigure(lang chat.Language, personality string) error {
	return c.send(command{kind: cmdReconfigure, language: lang, personality: personality})
}

// MediaError reports that the client's microphone could not be used.
func (c *Controller) MediaError(reason string) error {
	return c.send(command{kind: cmdMediaError, reason: reason})
}

func (c *Controller) send(cmd command) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.cmds <- cmd:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Run connects to the backend and processes commands until Finish or ctx is
// done. It returns nil after Finish and ctx.Err() on cancellation.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.teardown()

	c.connect(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-c.cmds:
			if c.handleCommand(ctx, cmd) {
				return nil
			}
		case ev := <-c.events:
			c.handleBackend(ev)
		case <-c.grace.C():
			c.grace.fired()
			c.handleGraceElapsed()
		case <-c.drain.C():
			c.drain.fired()
			c.handleDrain()
		}
	}
}

// handleCommand reports whether the loop should end.
func (c *Controller) handleCommand(ctx context.Context, cmd command) bool {
	switch cmd.kind {
	case cmdFinish:
		c.handleFinish()
		return true
	case cmdReconfigure:
		c.handleReconfigure(ctx, cmd.language, cmd.personality)
		return false
	}
	if c.state == StateError {
		return false
	}
	switch cmd.kind {
	case cmdPressTalk:
		c.handlePressTalk()
	case cmdReleaseTalk:
		c.handleReleaseTalk()
	case cmdMicAudio:
		c.handleMicAudio(cmd.pcm)
	case cmdMediaError:
		c.fail(&core.Error{Type: core.ErrInvalidRequest, Code: "media_error", Message: cmd.reason})
	}
	return false
}

func (c *Controller) handlePressTalk() {
	if c.micOn || c.state == StateError {
		return
	}
	// A release still inside its grace window closes its turn first.
	if c.grace.active {
		c.grace.stop()
		c.finalizeTurn()
	}
	c.pending = nil
	c.resetPlayback(ResetTalkStart)
	c.micOn = true
	c.hasUserSpoken = true
	c.setState(StateListening)
}

func (c *Controller) handleReleaseTalk() {
	if !c.micOn {
		return
	}
	c.micOn = false
	c.sink.MicLevel(0)
	c.setState(StateConnecting)
	c.grace.reset(c.graceDelay)
}

func (c *Controller) handleGraceElapsed() {
	c.finalizeTurn()
	queued := c.pending
	c.pending = nil
	for _, pcm := range queued {
		c.play(pcm)
	}
}

func (c *Controller) handleMicAudio(pcm []byte) {
	if !c.micOn || c.conn == nil {
		return
	}
	c.sink.MicLevel(MicLevel(pcm))
	if err := c.conn.SendAudio(pcm); err != nil {
		c.fail(fmt.Errorf("live backend send: %w", err))
	}
}

func (c *Controller) handleReconfigure(ctx context.Context, lang chat.Language, personality string) {
	if lang != "" {
		c.language = lang
	}
	c.personality = personality

	if c.grace.active {
		c.grace.stop()
		c.finalizeTurn()
	} else {
		c.clearPartials()
	}
	if c.micOn {
		c.micOn = false
		c.sink.MicLevel(0)
	}
	c.closeConn()
	c.pending = nil
	c.resetPlayback(ResetReconfigure)
	c.hasUserSpoken = false
	c.logger.Info("live session reconfigured", "language", string(c.language))
	c.connect(ctx)
}

func (c *Controller) handleFinish() {
	c.grace.stop()
	c.finalizeTurn()
	c.sink.Saved(NewMessages(c.messages))
}

func (c *Controller) handleBackend(be backendEvent) {
	if be.gen != c.connGen || c.state == StateError {
		return
	}
	if be.err != nil {
		c.fail(fmt.Errorf("live backend: %w", be.err))
		return
	}
	ev := be.ev
	if ev.Interrupted && c.hasUserSpoken {
		c.pending = nil
		c.resetPlayback(ResetInterrupted)
		if !c.micOn && c.state == StateSpeaking {
			c.setState(StateConnecting)
		}
	}
	if ev.InputTranscript != "" {
		c.hasUserSpoken = true
		c.inputText.WriteString(ev.InputTranscript)
		c.sink.Transcript(chat.RoleUser, c.inputText.String())
	}
	if ev.OutputTranscript != "" && c.hasUserSpoken {
		c.outputText.WriteString(ev.OutputTranscript)
		c.sink.Transcript(chat.RoleModel, c.outputText.String())
	}
	for _, pcm := range ev.Audio {
		if len(pcm) == 0 {
			continue
		}
		if !c.hasUserSpoken {
			c.logger.Debug("dropping unprompted assistant audio", "bytes", len(pcm))
			continue
		}
		// Audio queued during the turn flushes when the grace period ends;
		// anything later has to queue behind it.
		if c.micOn || c.grace.active {
			c.pending = append(c.pending, pcm)
			continue
		}
		c.play(pcm)
	}
}

func (c *Controller) handleDrain() {
	if c.micOn || c.state != StateSpeaking {
		return
	}
	if !c.sched.Idle(c.clock()) {
		c.drain.reset(c.sched.Next() - c.clock())
		return
	}
	c.setState(StateConnecting)
}

func (c *Controller) play(pcm []byte) {
	now := c.clock()
	chunk := c.sched.Schedule(pcm, now)
	c.setState(StateSpeaking)
	c.sink.Audio(chunk)
	c.drain.reset(chunk.End() - now)
}

func (c *Controller) resetPlayback(reason string) {
	c.drain.stop()
	c.sched.Reset()
	c.sink.ResetAudio(reason)
}

// clearPartials drops both transcript buffers without committing them.
func (c *Controller) clearPartials() {
	if c.inputText.Len() == 0 && c.outputText.Len() == 0 {
		return
	}
	c.inputText.Reset()
	c.outputText.Reset()
	c.sink.Transcript(chat.RoleUser, "")
	c.sink.Transcript(chat.RoleModel, "")
}

// finalizeTurn appends a user/model pair when either buffer has text.
func (c *Controller) finalizeTurn() {
	userText := strings.TrimSpace(c.inputText.String())
	modelText := strings.TrimSpace(c.outputText.String())
	c.clearPartials()
	if userText == "" && modelText == "" {
		return
	}
	if userText == "" {
		userText = emptySidePlaceholder
	}
	if modelText == "" {
		modelText = emptySidePlaceholder
	}
	ts := c.now()
	user := VoiceMessage{ID: c.newID(), Role: chat.RoleUser, Text: userText, Timestamp: ts}
	model := VoiceMessage{ID: c.newID(), Role: chat.RoleModel, Text: modelText, Timestamp: ts.Add(time.Millisecond)}
	c.messages = append(c.messages, user, model)
	c.sink.Turn(user, model)
}

func (c *Controller) connect(ctx context.Context) {
	c.connGen++
	gen := c.connGen
	conn, err := c.connector.Connect(ctx, ConnectConfig{
		SystemInstruction: BuildSystemInstruction(c.language, c.history, c.personality),
		Language:          c.language,
	})
	if err != nil {
		c.fail(fmt.Errorf("live backend connect: %w", err))
		return
	}
	c.conn = conn
	pumpCtx, cancel := context.WithCancel(ctx)
	c.pumpCancel = cancel
	go c.pump(pumpCtx, gen, conn)

	c.logger.Info("live session connected", "language", string(c.language), "connection", gen)
	c.setState(StateConnecting)
}

// pump forwards backend events into the loop until the connection fails or
// ctx is done.
func (c *Controller) pump(ctx context.Context, gen int, conn Conn) {
	for {
		ev, err := conn.Receive()
		select {
		case c.events <- backendEvent{gen: gen, ev: ev, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *Controller) closeConn() {
	if c.pumpCancel != nil {
		c.pumpCancel()
		c.pumpCancel = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("live backend close failed", "error", err)
		}
		c.conn = nil
	}
}

func (c *Controller) fail(err error) {
	c.logger.Warn("live session error", "error", err)
	c.closeConn()
	c.micOn = false
	c.setState(StateError)
	c.sink.Error(err)
}

func (c *Controller) teardown() {
	c.grace.stop()
	c.drain.stop()
	c.closeConn()
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.sink.State(s)
}

// clock is the playback clock position.
func (c *Controller) clock() time.Duration {
	return c.now().Sub(c.epoch)
}
