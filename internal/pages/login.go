// Package pages holds the page objects of the SauceDemo application.
package pages

import (
	"fmt"
	"time"

	"github.com/tebeka/selenium"

	"github.com/wanmail/saucedemo/internal/ui"
)

// Locators of the login and inventory pages.
var (
	UsernameInput      = ui.ID("user-name")
	PasswordInput      = ui.ID("password")
	LoginButton        = ui.ID("login-button")
	ErrorMessage       = ui.CSS(`[data-test="error"]`)
	InventoryContainer = ui.ID("inventory_container")
	AppLogo            = ui.Class("app_logo")
)

const (
	// DefaultTimeout bounds every explicit wait of the page.
	DefaultTimeout = 10 * time.Second

	// InventoryPath is the URL fragment of the page shown after a login.
	InventoryPath = "/inventory.html"
)

// LoginPage drives the SauceDemo login form.
//
// Actions return the page so they can be chained. The first failing action
// is remembered and turns the following ones into no-ops; Err reports it.
type LoginPage struct {
	wd       selenium.WebDriver
	url      string
	timeout  time.Duration
	interval time.Duration
	err      error
}

// NewLoginPage returns a page for the login form served at url.
func NewLoginPage(wd selenium.WebDriver, url string) *LoginPage {
	return &LoginPage{wd: wd, url: url, timeout: DefaultTimeout, interval: ui.DefaultInterval}
}

// WithTimeout sets the ceiling of the page's explicit waits.
func (p *LoginPage) WithTimeout(d time.Duration) *LoginPage {
	p.timeout = d
	return p
}

// URL returns the address of the login form.
func (p *LoginPage) URL() string { return p.url }

// Err returns the first error met by a chained action.
func (p *LoginPage) Err() error { return p.err }

func (p *LoginPage) do(action string, f func() error) *LoginPage {
	if p.err != nil {
		return p
	}
	if err := f(); err != nil {
		p.err = fmt.Errorf("%s: %w", action, err)
	}
	return p
}

func (p *LoginPage) wait(timeout time.Duration) *ui.Wait {
	return ui.NewWait(p.wd, timeout).WithInterval(p.interval)
}

// interactable waits until loc can take input.
func (p *LoginPage) interactable(loc ui.Locator) (selenium.WebElement, error) {
	return p.wait(p.timeout).UntilElement(loc, ui.Interactable)
}

// Open navigates to the login form.
func (p *LoginPage) Open() *LoginPage {
	return p.do("open login page", func() error {
		return p.wd.Get(p.url)
	})
}

// EnterUsername types into the username field.
func (p *LoginPage) EnterUsername(username string) *LoginPage {
	return p.do("enter username", func() error {
		elem, err := p.interactable(UsernameInput)
		if err != nil {
			return err
		}
		return elem.SendKeys(username)
	})
}

// EnterPassword types into the password field.
func (p *LoginPage) EnterPassword(password string) *LoginPage {
	return p.do("enter password", func() error {
		elem, err := p.interactable(PasswordInput)
		if err != nil {
			return err
		}
		return elem.SendKeys(password)
	})
}

// ClickLogin submits the form.
func (p *LoginPage) ClickLogin() *LoginPage {
	return p.do("click login", func() error {
		elem, err := p.interactable(LoginButton)
		if err != nil {
			return err
		}
		return elem.Click()
	})
}

// ClearFields empties both credential inputs.
func (p *LoginPage) ClearFields() *LoginPage {
	return p.do("clear fields", func() error {
		for _, loc := range []ui.Locator{UsernameInput, PasswordInput} {
			elem, err := p.interactable(loc)
			if err != nil {
				return err
			}
			if err := elem.Clear(); err != nil {
				return err
			}
		}
		return nil
	})
}

// Login opens the form, fills in both credentials and submits.
func (p *LoginPage) Login(username, password string) error {
	return p.Open().EnterUsername(username).EnterPassword(password).ClickLogin().Err()
}

// ErrorText returns the text of the form's error banner. An empty string
// means no banner appeared within the page timeout.
func (p *LoginPage) ErrorText() (string, error) {
	elem, err := p.wait(p.timeout).UntilElement(ErrorMessage, ui.Visible)
	if ui.IsTimeout(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return elem.Text()
}

// CurrentURL returns the browser's current address.
func (p *LoginPage) CurrentURL() (string, error) {
	return p.wd.CurrentURL()
}

// InventoryLoaded reports whether the inventory page came up: the URL
// carries InventoryPath, then the product container and then the logo are
// visible. Each condition gets the full timeout. Running out of time is a
// false result, not an error.
func (p *LoginPage) InventoryLoaded(timeout time.Duration) (bool, error) {
	checks := []selenium.Condition{
		ui.URLContains(InventoryPath),
		ui.ElementIs(InventoryContainer, ui.Visible),
		ui.ElementIs(AppLogo, ui.Visible),
	}
	for _, cond := range checks {
		err := p.wait(timeout).Until(cond)
		if ui.IsTimeout(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	return true, nil
}
