// Package paymentidentifier implements the payment-identifier extension,
// an idempotency key carried in the extensions map of PaymentRequired and
// PaymentPayload objects.
//
// Servers declare the extension with Declare; clients call Append on the
// advertised extensions before building a payload, which generates or
// validates an ID; servers and facilitators read it back with Extract and
// use it to deduplicate payments.
//
// The package operates on loose map[string]any extension bags and has no
// dependency on the protocol types.
package paymentidentifier
