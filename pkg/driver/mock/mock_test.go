package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
)

func TestDriver_RequiresSession(t *testing.T) {
	d := New(Config{})
	d.Add("css=#go", &Element{Text: "Go"})

	_, err := d.Find(context.Background(), core.ParseLocator("css=#go"))
	assert.ErrorIs(t, err, core.ErrNoSession)

	_, err = d.OpenSession(context.Background(), "chrome")
	require.NoError(t, err)

	el, err := d.Find(context.Background(), core.ParseLocator("css=#go"))
	require.NoError(t, err)
	text, err := d.ReadText(context.Background(), el)
	require.NoError(t, err)
	assert.Equal(t, "Go", text)
}

func TestDriver_FailOnCall(t *testing.T) {
	d := New(Config{FailOnCall: 2})
	ctx := context.Background()
	_, _ = d.OpenSession(ctx, "chrome")

	assert.NoError(t, d.Navigate(ctx, "https://a.example"))
	assert.Error(t, d.Navigate(ctx, "https://b.example"))
	assert.NoError(t, d.Navigate(ctx, "https://c.example"))
	assert.Equal(t, "https://c.example", d.URL())
}

func TestDriver_NamedErrors(t *testing.T) {
	boom := errors.New("boom")
	d := New(Config{Errors: map[string]error{"Navigate": boom}})
	_, _ = d.OpenSession(context.Background(), "chrome")

	assert.ErrorIs(t, d.Navigate(context.Background(), "x"), boom)
}

func TestDriver_ClickRunsHook(t *testing.T) {
	d := New(Config{})
	ctx := context.Background()
	_, _ = d.OpenSession(ctx, "chrome")

	clicks := 0
	d.Add("//button", &Element{OnClick: func() { clicks++ }})
	el, err := d.WaitUntilInteractable(ctx, core.ParseLocator("//button"), 0)
	require.NoError(t, err)
	require.NoError(t, d.Click(ctx, el))
	assert.Equal(t, 1, clicks)
}

func TestDriver_WaitRejectsDisabled(t *testing.T) {
	d := New(Config{})
	ctx := context.Background()
	_, _ = d.OpenSession(ctx, "chrome")
	d.Add("id=submit", &Element{Disabled: true})

	_, err := d.WaitUntilInteractable(ctx, core.ParseLocator("id=submit"), 0)
	assert.ErrorIs(t, err, core.ErrWaitTimeout)
}

func TestDriver_SwitchToFrame(t *testing.T) {
	d := New(Config{})
	ctx := context.Background()
	_, _ = d.OpenSession(ctx, "chrome")
	d.Add("css=iframe", &Element{IsFrame: true})
	d.Add("css=div", &Element{})

	frame, _ := d.Find(ctx, core.ParseLocator("css=iframe"))
	div, _ := d.Find(ctx, core.ParseLocator("css=div"))
	assert.NoError(t, d.SwitchToFrame(ctx, frame))
	assert.Error(t, d.SwitchToFrame(ctx, div))
	assert.NoError(t, d.SwitchToDefaultFrame(ctx))
}
