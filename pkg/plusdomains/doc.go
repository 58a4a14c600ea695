// Package plusdomains is a typed client for the slice of the Google+ Domains
// API needed to post on a user's behalf: activities.insert and
// activities.get.
//
// Callers act as the impersonated user by passing UserMe:
//
//	svc := plusdomains.NewService(apiclient.New(plusdomains.DefaultBaseURL, provider))
//	posted, err := svc.Activities.Insert(ctx, plusdomains.UserMe,
//		plusdomains.NewDomainPost("Happy Monday! #caseofthemondays"))
package plusdomains
