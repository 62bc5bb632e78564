package mlstring

import "errors"

var errMarkup = errors.New("must not contain HTML markup")
