package pages

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/tebeka/selenium"

	"github.com/wanmail/saucedemo/internal/webdrivertest"
)

const baseURL = "https://www.saucedemo.com/"

// site scripts the behavior of the login form on top of a fake driver.
type site struct {
	wd       *webdrivertest.Driver
	username *webdrivertest.Element
	password *webdrivertest.Element
	button   *webdrivertest.Element
	// logoDelay keeps the logo hidden for that many visibility checks.
	logoDelay int
}

func newSite() *site {
	s := &site{wd: webdrivertest.NewDriver()}
	s.wd.OnGet = func(string) { s.render() }
	return s
}

func (s *site) render() {
	s.username = s.wd.Add(selenium.ByID, "user-name", &webdrivertest.Element{Displayed: true, Enabled: true})
	s.password = s.wd.Add(selenium.ByID, "password", &webdrivertest.Element{Displayed: true, Enabled: true})
	s.button = s.wd.Add(selenium.ByID, "login-button", &webdrivertest.Element{Displayed: true, Enabled: true})
	s.button.OnClick = s.submit
}

func (s *site) fail(msg string) {
	s.wd.Add(selenium.ByCSSSelector, `[data-test="error"]`, &webdrivertest.Element{
		Displayed: true,
		InnerText: "Epic sadface: " + msg,
	})
}

func (s *site) submit() {
	user, pass := s.username.Typed(), s.password.Typed()
	switch {
	case user == "":
		s.fail("Username is required")
	case pass == "":
		s.fail("Password is required")
	case user == "locked_out_user":
		s.fail("Sorry, this user has been locked out.")
	case pass != "secret_sauce":
		s.fail("Username and password do not match any user in this service")
	default:
		s.wd.SetURL(baseURL + "inventory.html")
		s.wd.Add(selenium.ByID, "inventory_container", &webdrivertest.Element{Displayed: true})
		s.wd.Add(selenium.ByClassName, "app_logo", &webdrivertest.Element{Displayed: true, ShowAfter: s.logoDelay})
	}
}

func newTestPage(wd selenium.WebDriver) *LoginPage {
	p := NewLoginPage(wd, baseURL).WithTimeout(100 * time.Millisecond)
	p.interval = 5 * time.Millisecond
	return p
}

func TestLoginSuccess(t *testing.T) {
	s := newSite()
	p := newTestPage(s.wd)

	if err := p.Login("standard_user", "secret_sauce"); err != nil {
		t.Fatalf("Login() returned error: %v", err)
	}
	if diff := cmp.Diff([]string{baseURL}, s.wd.Visits()); diff != "" {
		t.Fatalf("visited URLs diff (-want/+got):\n%s", diff)
	}
	if got := s.username.Typed(); got != "standard_user" {
		t.Errorf("username field = %q, want %q", got, "standard_user")
	}
	if got := s.button.Clicks(); got != 1 {
		t.Errorf("login button clicked %d times, want 1", got)
	}

	ok, err := p.InventoryLoaded(time.Second)
	if err != nil {
		t.Fatalf("InventoryLoaded() returned error: %v", err)
	}
	if !ok {
		t.Fatal("InventoryLoaded() = false after a valid login")
	}
	u, err := p.CurrentURL()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(u, InventoryPath) {
		t.Errorf("CurrentURL() = %q, want it to contain %q", u, InventoryPath)
	}
}

func TestLoginErrors(t *testing.T) {
	tests := []struct {
		desc, user, pass, want string
	}{
		{"wrong password", "standard_user", "wrong_password", "Username and password do not match"},
		{"locked out", "locked_out_user", "secret_sauce", "Sorry, this user has been locked out"},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			s := newSite()
			p := newTestPage(s.wd)
			if err := p.Login(test.user, test.pass); err != nil {
				t.Fatalf("Login() returned error: %v", err)
			}
			text, err := p.ErrorText()
			if err != nil {
				t.Fatalf("ErrorText() returned error: %v", err)
			}
			if !strings.Contains(text, test.want) {
				t.Errorf("ErrorText() = %q, want it to contain %q", text, test.want)
			}
			if u, _ := p.CurrentURL(); u != baseURL {
				t.Errorf("CurrentURL() = %q, want %q", u, baseURL)
			}
		})
	}
}

func TestEmptyCredentials(t *testing.T) {
	s := newSite()
	p := newTestPage(s.wd)

	if err := p.Open().ClickLogin().Err(); err != nil {
		t.Fatalf("Open().ClickLogin() returned error: %v", err)
	}
	text, err := p.ErrorText()
	if err != nil {
		t.Fatalf("ErrorText() returned error: %v", err)
	}
	if !strings.Contains(text, "Username is required") {
		t.Errorf("ErrorText() = %q, want it to contain %q", text, "Username is required")
	}
}

func TestErrorTextWithoutBanner(t *testing.T) {
	s := newSite()
	p := newTestPage(s.wd)
	p.Open()

	text, err := p.ErrorText()
	if err != nil {
		t.Fatalf("ErrorText() returned error: %v", err)
	}
	if text != "" {
		t.Fatalf("ErrorText() = %q, want empty string when no banner shows up", text)
	}
}

func TestErrorTextDriverFailure(t *testing.T) {
	wd := webdrivertest.NewDriver()
	wd.FindErr = errors.New("invalid session id")
	p := newTestPage(wd)

	if _, err := p.ErrorText(); err == nil {
		t.Fatal("ErrorText() swallowed a driver failure")
	}
}

func TestInventoryLoadedTimeout(t *testing.T) {
	s := newSite()
	p := newTestPage(s.wd)
	p.Open()

	ok, err := p.InventoryLoaded(30 * time.Millisecond)
	if err != nil {
		t.Fatalf("InventoryLoaded() returned error: %v", err)
	}
	if ok {
		t.Fatal("InventoryLoaded() = true on the login page")
	}
}

func TestInventoryLoadedWaitsEachCondition(t *testing.T) {
	s := newSite()
	s.logoDelay = 4
	p := newTestPage(s.wd)

	if err := p.Login("performance_glitch_user", "secret_sauce"); err != nil {
		t.Fatalf("Login() returned error: %v", err)
	}
	ok, err := p.InventoryLoaded(time.Second)
	if err != nil {
		t.Fatalf("InventoryLoaded() returned error: %v", err)
	}
	if !ok {
		t.Fatal("InventoryLoaded() = false for a late logo")
	}
}

func TestChainStopsAtFirstError(t *testing.T) {
	s := newSite()
	p := newTestPage(s.wd)

	// The form was never opened, so the username field does not exist.
	err := p.EnterUsername("standard_user").EnterPassword("secret_sauce").ClickLogin().Err()
	if err == nil {
		t.Fatal("chain on an unopened page returned nil error")
	}
	if !strings.HasPrefix(err.Error(), "enter username:") {
		t.Errorf("Err() = %q, want the username step to be reported", err)
	}
	if len(s.wd.Visits()) != 0 {
		t.Errorf("chain navigated after failing: %v", s.wd.Visits())
	}
}

func TestInteractionsWaitForLateFields(t *testing.T) {
	s := newSite()
	p := newTestPage(s.wd)
	p.Open()
	// Re-render the password field hidden for a few checks.
	s.password = s.wd.Add(selenium.ByID, "password", &webdrivertest.Element{Displayed: true, Enabled: true, ShowAfter: 3})

	if err := p.EnterPassword("secret_sauce").Err(); err != nil {
		t.Fatalf("EnterPassword() returned error: %v", err)
	}
	if got := s.password.Typed(); got != "secret_sauce" {
		t.Errorf("password field = %q, want %q", got, "secret_sauce")
	}
}

func TestClearFields(t *testing.T) {
	s := newSite()
	p := newTestPage(s.wd)

	if err := p.Open().EnterUsername("standard_user").EnterPassword("x").ClearFields().Err(); err != nil {
		t.Fatalf("ClearFields() chain returned error: %v", err)
	}
	if s.username.Typed() != "" || s.password.Typed() != "" {
		t.Errorf("fields after ClearFields() = %q, %q, want both empty", s.username.Typed(), s.password.Typed())
	}
	if s.username.Cleared() != 1 || s.password.Cleared() != 1 {
		t.Errorf("Clear calls = %d, %d, want 1 each", s.username.Cleared(), s.password.Cleared())
	}
}
