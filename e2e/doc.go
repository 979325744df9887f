// Package e2e holds the browser scenarios of the SauceDemo login flow.
//
// The scenarios need a WebDriver: a local ChromeDriver/GeckoDriver (see
// cmd/saucedemo-drivers) or a remote endpoint in SELENIUM_REMOTE_URL. Without
// one, or with -short, they are skipped. Run them with
//
//	go test ./e2e -headless
//
// Results are written for Allure to ALLURE_RESULTS_DIR (default
// allure-results at the repository root).
package e2e
