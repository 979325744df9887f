// Package webdrivertest provides an in-memory selenium.WebDriver for tests
// that exercise page logic without a browser.
package webdrivertest

import (
	"fmt"
	"sync"
	"time"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/log"
)

type key struct{ by, value string }

// Element is a scripted page element. Zero-valued elements are present but
// hidden and disabled.
type Element struct {
	// The embedded interface is nil; calling a method this type does not
	// implement panics, which flags the test as relying on something new.
	selenium.WebElement

	Displayed bool
	Enabled   bool
	InnerText string

	// ShowAfter hides the element for the given number of IsDisplayed calls.
	ShowAfter int

	// OnClick runs after each click.
	OnClick func()

	mu      sync.Mutex
	typed   string
	clicks  int
	cleared int
	checks  int
}

// Click implements selenium.WebElement.
func (e *Element) Click() error {
	e.mu.Lock()
	e.clicks++
	fn := e.OnClick
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// SendKeys implements selenium.WebElement.
func (e *Element) SendKeys(keys string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.typed += keys
	return nil
}

// Clear implements selenium.WebElement.
func (e *Element) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.typed = ""
	e.cleared++
	return nil
}

// Text implements selenium.WebElement.
func (e *Element) Text() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.InnerText, nil
}

// IsDisplayed implements selenium.WebElement.
func (e *Element) IsDisplayed() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checks++
	if e.checks <= e.ShowAfter {
		return false, nil
	}
	return e.Displayed, nil
}

// IsEnabled implements selenium.WebElement.
func (e *Element) IsEnabled() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Enabled, nil
}

// Typed returns the keys sent since the last Clear.
func (e *Element) Typed() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.typed
}

// Clicks returns the number of clicks.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Cleared returns the number of Clear calls.
func (e *Element) Cleared() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cleared
}

// Show makes the element displayed and enabled.
func (e *Element) Show() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Displayed, e.Enabled = true, true
}

// Driver is a fake selenium.WebDriver backed by a map of elements.
type Driver struct {
	selenium.WebDriver

	// FindErr, if set, is returned by every FindElement call.
	FindErr error
	// ScreenshotErr, if set, is returned by Screenshot.
	ScreenshotErr error
	// QuitErr, if set, is returned by Quit.
	QuitErr error
	// TimeoutErr, if set, is returned by SetImplicitWaitTimeout.
	TimeoutErr error
	// PNG is returned by Screenshot.
	PNG []byte
	// Console is returned by Log for the browser log type.
	Console []log.Message
	// OnGet runs after each navigation.
	OnGet func(url string)

	mu           sync.Mutex
	url          string
	visits       []string
	elements     map[key]*Element
	quits        int
	implicitWait time.Duration
	pageLoad     time.Duration
}

// NewDriver returns an empty fake at about:blank.
func NewDriver() *Driver {
	return &Driver{url: "about:blank", elements: make(map[key]*Element), PNG: []byte("\x89PNG\r\n\x1a\n")}
}

// Add places e on the page under the given lookup.
func (d *Driver) Add(by, value string, e *Element) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements[key{by, value}] = e
	return e
}

// SetURL changes the current URL without recording a visit.
func (d *Driver) SetURL(u string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = u
}

// Visits returns the URLs passed to Get.
func (d *Driver) Visits() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.visits...)
}

// Quits returns the number of Quit calls.
func (d *Driver) Quits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quits
}

// Timeouts returns the implicit and page load timeouts last set.
func (d *Driver) Timeouts() (implicit, pageLoad time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.implicitWait, d.pageLoad
}

// SessionID implements selenium.WebDriver.
func (d *Driver) SessionID() string { return "fake-session" }

// Get implements selenium.WebDriver.
func (d *Driver) Get(u string) error {
	d.mu.Lock()
	d.url = u
	d.visits = append(d.visits, u)
	fn := d.OnGet
	d.mu.Unlock()
	if fn != nil {
		fn(u)
	}
	return nil
}

// CurrentURL implements selenium.WebDriver.
func (d *Driver) CurrentURL() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

// FindElement implements selenium.WebDriver.
func (d *Driver) FindElement(by, value string) (selenium.WebElement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FindErr != nil {
		return nil, d.FindErr
	}
	e, ok := d.elements[key{by, value}]
	if !ok {
		return nil, &selenium.Error{
			Err:     "no such element",
			Message: fmt.Sprintf("no such element: Unable to locate element: {%q: %q}", by, value),
		}
	}
	return e, nil
}

// Screenshot implements selenium.WebDriver.
func (d *Driver) Screenshot() ([]byte, error) {
	if d.ScreenshotErr != nil {
		return nil, d.ScreenshotErr
	}
	return d.PNG, nil
}

// Log implements selenium.WebDriver.
func (d *Driver) Log(typ log.Type) ([]log.Message, error) {
	if typ != log.Browser {
		return nil, fmt.Errorf("log type %q not configured", typ)
	}
	return d.Console, nil
}

// Quit implements selenium.WebDriver.
func (d *Driver) Quit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quits++
	return d.QuitErr
}

// SetImplicitWaitTimeout implements selenium.WebDriver.
func (d *Driver) SetImplicitWaitTimeout(timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.TimeoutErr != nil {
		return d.TimeoutErr
	}
	d.implicitWait = timeout
	return nil
}

// SetPageLoadTimeout implements selenium.WebDriver.
func (d *Driver) SetPageLoadTimeout(timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pageLoad = timeout
	return nil
}

// WaitWithTimeoutAndInterval implements selenium.WebDriver the way the
// remote client does: condition errors end the wait immediately.
func (d *Driver) WaitWithTimeoutAndInterval(condition selenium.Condition, timeout, interval time.Duration) error {
	start := time.Now()
	for {
		done, err := condition(d)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if elapsed := time.Since(start); elapsed > timeout {
			return fmt.Errorf("timeout after %v", elapsed)
		}
		time.Sleep(interval)
	}
}

// WaitWithTimeout implements selenium.WebDriver.
func (d *Driver) WaitWithTimeout(condition selenium.Condition, timeout time.Duration) error {
	return d.WaitWithTimeoutAndInterval(condition, timeout, 10*time.Millisecond)
}

// Wait implements selenium.WebDriver.
func (d *Driver) Wait(condition selenium.Condition) error {
	return d.WaitWithTimeout(condition, time.Second)
}
