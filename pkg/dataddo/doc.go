// Package dataddo retrieves tabular data from the Dataddo data-integration API.
//
// A call takes a validated Token and an ObjectID (source, endpoint or flow),
// issues a single authenticated GET and decodes the JSON body into a DataResponse:
//
//	token, err := dataddo.NewToken(os.Getenv("DATADDO_TOKEN"))
//	id, err := dataddo.NewSourceID("5f1a2b3c4d5e6f7a8b9c0d1e")
//	resp, err := dataddo.GetSourceData(ctx, token, id, dataddo.WithJSONFormat(dataddo.JSONFormatObject))
//
// The package does not retry, paginate, cache or rate limit. Timeouts belong to the
// transport passed in via WithHTTPClient.
package dataddo
