// Package seed provides the built-in standard object schemas the server
// starts with.
package seed

import (
	"github.com/johnwards/notforce/internal/domain"
	"github.com/johnwards/notforce/internal/idgen"
	"github.com/johnwards/notforce/internal/schema"
)

// Registry returns a schema registry loaded with the standard objects.
func Registry() *schema.Registry {
	r := schema.NewRegistry()
	for _, s := range Schemas() {
		r.Register(s)
	}
	return r
}

// Schemas returns the built-in standard object definitions.
func Schemas() []*domain.ObjectSchema {
	return []*domain.ObjectSchema{
		account(),
		contact(),
		opportunity(),
		lead(),
		caseObject(),
	}
}

// id and the audit timestamps are system-managed on every object.
func systemFields() []domain.Field {
	return []domain.Field{
		{Name: "Id", Label: "Record ID", Type: "id"},
		{Name: "CreatedDate", Label: "Created Date", Type: "datetime"},
		{Name: "LastModifiedDate", Label: "Last Modified Date", Type: "datetime"},
		{Name: "SystemModstamp", Label: "System Modstamp", Type: "datetime"},
	}
}

func writable(f domain.Field) domain.Field {
	f.Createable = true
	f.Updateable = true
	return f
}

func account() *domain.ObjectSchema {
	fields := append(systemFields(),
		writable(domain.Field{Name: "Name", Label: "Account Name", Type: "string", Length: 255, Required: true}),
		writable(domain.Field{Name: "Industry", Label: "Industry", Type: "picklist",
			PicklistValues: []string{"Agriculture", "Banking", "Consulting", "Energy", "Manufacturing", "Technology"}}),
		writable(domain.Field{Name: "Phone", Label: "Account Phone", Type: "phone", Length: 40}),
		writable(domain.Field{Name: "Website", Label: "Website", Type: "url", Length: 255}),
		writable(domain.Field{Name: "BillingCity", Label: "Billing City", Type: "string", Length: 40}),
		writable(domain.Field{Name: "NumberOfEmployees", Label: "Employees", Type: "int"}),
		writable(domain.Field{Name: "ExternalId__c", Label: "External ID", Type: "string", Length: 255, ExternalID: true}),
	)
	return &domain.ObjectSchema{Name: "Account", Label: "Account", KeyPrefix: idgen.PrefixAccount, Fields: fields}
}

func contact() *domain.ObjectSchema {
	fields := append(systemFields(),
		writable(domain.Field{Name: "LastName", Label: "Last Name", Type: "string", Length: 80, Required: true}),
		writable(domain.Field{Name: "FirstName", Label: "First Name", Type: "string", Length: 40}),
		writable(domain.Field{Name: "Email", Label: "Email", Type: "email", Length: 80}),
		writable(domain.Field{Name: "Phone", Label: "Business Phone", Type: "phone", Length: 40}),
		writable(domain.Field{Name: "Title", Label: "Title", Type: "string", Length: 128}),
		writable(domain.Field{Name: "AccountId", Label: "Account ID", Type: "reference"}),
		writable(domain.Field{Name: "LeadSource", Label: "Lead Source", Type: "picklist",
			PicklistValues: []string{"Web", "Phone Inquiry", "Partner Referral", "Purchased List", "Other"}}),
		writable(domain.Field{Name: "ExternalId__c", Label: "External ID", Type: "string", Length: 255, ExternalID: true}),
	)
	return &domain.ObjectSchema{Name: "Contact", Label: "Contact", KeyPrefix: idgen.PrefixContact, Fields: fields}
}

func opportunity() *domain.ObjectSchema {
	fields := append(systemFields(),
		writable(domain.Field{Name: "Name", Label: "Opportunity Name", Type: "string", Length: 120, Required: true}),
		writable(domain.Field{Name: "StageName", Label: "Stage", Type: "picklist", Required: true,
			PicklistValues: []string{"Prospecting", "Qualification", "Needs Analysis", "Value Proposition", "Negotiation", "Closed Won", "Closed Lost"}}),
		writable(domain.Field{Name: "CloseDate", Label: "Close Date", Type: "date", Required: true}),
		writable(domain.Field{Name: "Amount", Label: "Amount", Type: "currency"}),
		writable(domain.Field{Name: "AccountId", Label: "Account ID", Type: "reference"}),
		writable(domain.Field{Name: "ExternalId__c", Label: "External ID", Type: "string", Length: 255, ExternalID: true}),
	)
	return &domain.ObjectSchema{Name: "Opportunity", Label: "Opportunity", KeyPrefix: idgen.PrefixOpportunity, Fields: fields}
}

func lead() *domain.ObjectSchema {
	fields := append(systemFields(),
		writable(domain.Field{Name: "LastName", Label: "Last Name", Type: "string", Length: 80, Required: true}),
		writable(domain.Field{Name: "Company", Label: "Company", Type: "string", Length: 255, Required: true}),
		writable(domain.Field{Name: "FirstName", Label: "First Name", Type: "string", Length: 40}),
		writable(domain.Field{Name: "Email", Label: "Email", Type: "email", Length: 80}),
		writable(domain.Field{Name: "Status", Label: "Lead Status", Type: "picklist",
			PicklistValues: []string{"Open - Not Contacted", "Working - Contacted", "Closed - Converted", "Closed - Not Converted"}}),
		writable(domain.Field{Name: "Rating", Label: "Rating", Type: "picklist",
			PicklistValues: []string{"Hot", "Warm", "Cold"}}),
		writable(domain.Field{Name: "ExternalId__c", Label: "External ID", Type: "string", Length: 255, ExternalID: true}),
	)
	return &domain.ObjectSchema{Name: "Lead", Label: "Lead", KeyPrefix: idgen.PrefixLead, Fields: fields}
}

func caseObject() *domain.ObjectSchema {
	fields := append(systemFields(),
		writable(domain.Field{Name: "Subject", Label: "Subject", Type: "string", Length: 255}),
		writable(domain.Field{Name: "Status", Label: "Status", Type: "picklist",
			PicklistValues: []string{"New", "Working", "Escalated", "Closed"}}),
		writable(domain.Field{Name: "Origin", Label: "Case Origin", Type: "picklist",
			PicklistValues: []string{"Phone", "Email", "Web"}}),
		writable(domain.Field{Name: "Priority", Label: "Priority", Type: "picklist",
			PicklistValues: []string{"High", "Medium", "Low"}}),
		writable(domain.Field{Name: "Description", Label: "Description", Type: "textarea", Length: 32000}),
		writable(domain.Field{Name: "AccountId", Label: "Account ID", Type: "reference"}),
		writable(domain.Field{Name: "ContactId", Label: "Contact ID", Type: "reference"}),
		writable(domain.Field{Name: "ExternalId__c", Label: "External ID", Type: "string", Length: 255, ExternalID: true}),
	)
	return &domain.ObjectSchema{Name: "Case", Label: "Case", KeyPrefix: idgen.PrefixCase, Fields: fields}
}
