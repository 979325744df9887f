// Package ui provides element locators and explicit waits on top of a
// selenium.WebDriver.
package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tebeka/selenium"
)

// DefaultInterval is the polling interval of a Wait.
const DefaultInterval = 500 * time.Millisecond

// ErrTimeout is returned, possibly wrapped, when a condition did not hold
// before the wait expired.
var ErrTimeout = errors.New("wait timed out")

// Locator names an element by a selenium lookup strategy and its value.
type Locator struct {
	By    string
	Value string
}

// ID returns a Locator for an element id.
func ID(id string) Locator { return Locator{By: selenium.ByID, Value: id} }

// CSS returns a Locator for a CSS selector.
func CSS(sel string) Locator { return Locator{By: selenium.ByCSSSelector, Value: sel} }

// Class returns a Locator for a class name.
func Class(name string) Locator { return Locator{By: selenium.ByClassName, Value: name} }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%q", l.By, l.Value)
}

// Wait polls a condition until it holds or the timeout elapses.
type Wait struct {
	wd       selenium.WebDriver
	timeout  time.Duration
	interval time.Duration
}

// NewWait returns a Wait polling every DefaultInterval for at most timeout.
func NewWait(wd selenium.WebDriver, timeout time.Duration) *Wait {
	return &Wait{wd: wd, timeout: timeout, interval: DefaultInterval}
}

// WithInterval returns a copy of w polling at the given interval.
func (w *Wait) WithInterval(interval time.Duration) *Wait {
	c := *w
	c.interval = interval
	return &c
}

// Until blocks until cond returns true. An error returned by cond ends the
// wait and is returned as is; running out of time yields an error wrapping
// ErrTimeout.
func (w *Wait) Until(cond selenium.Condition) error {
	var condErr error
	err := w.wd.WaitWithTimeoutAndInterval(func(wd selenium.WebDriver) (bool, error) {
		ok, err := cond(wd)
		condErr = err
		return ok, err
	}, w.timeout, w.interval)
	switch {
	case err == nil:
		return nil
	case condErr != nil:
		return condErr
	default:
		return fmt.Errorf("%w after %v: %v", ErrTimeout, w.timeout, err)
	}
}

// UntilElement waits until the element named by loc is in the given state
// and returns it.
func (w *Wait) UntilElement(loc Locator, state State) (selenium.WebElement, error) {
	var found selenium.WebElement
	err := w.Until(func(wd selenium.WebDriver) (bool, error) {
		elem, ok, err := state.check(wd, loc)
		if ok {
			found = elem
		}
		return ok, err
	})
	if err != nil {
		return nil, fmt.Errorf("element %v %s: %w", loc, state, err)
	}
	return found, nil
}

// IsTimeout reports whether err came from a wait running out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNotFound reports whether err is a WebDriver error meaning the element is
// absent or detached from the page at the moment of the lookup.
func IsNotFound(err error) bool {
	var e *selenium.Error
	if errors.As(err, &e) {
		switch e.Err {
		case "no such element", "stale element reference":
			return true
		}
		return false
	}
	if err == nil {
		return false
	}
	// Legacy servers report plain errors carrying the same text.
	msg := err.Error()
	return strings.HasPrefix(msg, "no such element") || strings.HasPrefix(msg, "stale element reference")
}
