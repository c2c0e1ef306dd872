package server

import (
	"fmt"

	"github.com/seedlingworks/arbor/pkg/authz"
	"github.com/seedlingworks/arbor/pkg/httperr"
)

// siteConfigConfirmationPhrase is the exact string an operator must retype to
// authorize a site-wide configuration change. Embedding the operator's own
// username forces a deliberate, identity-bound confirmation instead of a
// scriptable checkbox.
func siteConfigConfirmationPhrase(username string) string {
	return fmt.Sprintf("My username is @%s and this action is 100%% safe and appropriate.", username)
}

// authorizeSiteConfigUpdate is the gate in front of the pipeline: the actor
// must hold the manage capability over the site-config resource (stricter
// than the read access every admin has) and must supply the exact
// identity-bound confirmation phrase. Either failure aborts before any other
// processing.
func authorizeSiteConfigUpdate(a authorizer, p Principal, confirmation string) error {
	subject := authz.SubjectFromRoleSlug(p.RoleSlug)
	allowed, enforced, err := a.Authorize(subject, authz.DomainGlobal, authz.ObjectAdminSiteConfig, authz.ActionManage)
	if err != nil {
		return err
	}
	if enforced && !allowed {
		return httperr.NewForbidden("site config management capability required")
	}
	if confirmation != siteConfigConfirmationPhrase(p.Username) {
		return httperr.NewForbidden("confirmation phrase does not match")
	}
	return nil
}
