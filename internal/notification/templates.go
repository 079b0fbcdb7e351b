package notification

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// TemplateRepository reads email templates. Editing happens in the portal.
type TemplateRepository struct {
	collection *mongo.Collection
}

func NewTemplateRepository(db *mongo.Database) *TemplateRepository {
	return &TemplateRepository{collection: db.Collection("email_templates")}
}

// ListCandidates returns the active templates of a type that belong to the
// organization or to the system.
func (r *TemplateRepository) ListCandidates(ctx context.Context, t Type, orgID primitive.ObjectID) ([]EmailTemplate, error) {
	owners := bson.A{nil}
	if !orgID.IsZero() {
		owners = append(owners, orgID)
	}
	filter := bson.M{
		"type":            t,
		"is_active":       true,
		"organization_id": bson.M{"$in": owners},
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find email templates: %w", err)
	}
	var templates []EmailTemplate
	if err := cursor.All(ctx, &templates); err != nil {
		return nil, fmt.Errorf("decode email templates: %w", err)
	}
	return templates, nil
}

// SelectTemplate picks the best candidate for an organization:
// org default, any org template, system default, any system template.
func SelectTemplate(candidates []EmailTemplate, orgID primitive.ObjectID) *EmailTemplate {
	ownedByOrg := func(tpl *EmailTemplate) bool {
		return !orgID.IsZero() && tpl.OrganizationID != nil && *tpl.OrganizationID == orgID
	}
	system := func(tpl *EmailTemplate) bool {
		return tpl.OrganizationID == nil || tpl.OrganizationID.IsZero()
	}
	passes := []func(*EmailTemplate) bool{
		func(tpl *EmailTemplate) bool { return ownedByOrg(tpl) && tpl.IsDefault },
		ownedByOrg,
		func(tpl *EmailTemplate) bool { return system(tpl) && tpl.IsDefault },
		system,
	}
	for _, match := range passes {
		for i := range candidates {
			if match(&candidates[i]) {
				return &candidates[i]
			}
		}
	}
	return nil
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Interpolate replaces {{name}} placeholders. Unknown names render empty.
func Interpolate(text string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		return vars[name]
	})
}
