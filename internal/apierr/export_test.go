package apierr

var Jittered = jittered
