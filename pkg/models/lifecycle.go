package models

// CanonicalLifecycle is the fixed phase order used to sort reports: the
// clean lifecycle, the default lifecycle, then the site lifecycle.
var CanonicalLifecycle = []string{
	// clean
	"pre-clean",
	"clean",
	"post-clean",

	// default
	"validate",
	"initialize",
	"generate-sources",
	"process-sources",
	"generate-resources",
	"process-resources",
	"compile",
	"process-classes",
	"generate-test-sources",
	"process-test-sources",
	"generate-test-resources",
	"process-test-resources",
	"test-compile",
	"process-test-classes",
	"test",
	"prepare-package",
	"package",
	"pre-integration-test",
	"integration-test",
	"post-integration-test",
	"verify",
	"install",
	"deploy",

	// site
	"pre-site",
	"site",
	"post-site",
	"site-deploy",
}
