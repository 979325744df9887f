package ui

import (
	"strings"

	"github.com/tebeka/selenium"
)

// State is the element state a Wait can block on.
type State int

// Element states.
const (
	// Present means the element is in the DOM.
	Present State = iota
	// Visible means the element is in the DOM and displayed.
	Visible
	// Interactable means the element is displayed and enabled.
	Interactable
)

func (s State) String() string {
	switch s {
	case Present:
		return "present"
	case Visible:
		return "visible"
	case Interactable:
		return "interactable"
	}
	return "unknown"
}

// check looks up loc and reports whether it is in state s. Lookup misses and
// stale references are not errors, only "not yet".
func (s State) check(wd selenium.WebDriver, loc Locator) (selenium.WebElement, bool, error) {
	elem, err := wd.FindElement(loc.By, loc.Value)
	if err != nil {
		if IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if s == Present {
		return elem, true, nil
	}

	displayed, err := elem.IsDisplayed()
	if err != nil {
		if IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !displayed {
		return nil, false, nil
	}
	if s == Visible {
		return elem, true, nil
	}

	enabled, err := elem.IsEnabled()
	if err != nil {
		if IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return elem, enabled, nil
}

// ElementIs returns a condition that holds once loc is in the given state.
func ElementIs(loc Locator, state State) selenium.Condition {
	return func(wd selenium.WebDriver) (bool, error) {
		_, ok, err := state.check(wd, loc)
		return ok, err
	}
}

// URLContains returns a condition that holds once the current URL contains
// fragment.
func URLContains(fragment string) selenium.Condition {
	return func(wd selenium.WebDriver) (bool, error) {
		u, err := wd.CurrentURL()
		if err != nil {
			return false, err
		}
		return strings.Contains(u, fragment), nil
	}
}
