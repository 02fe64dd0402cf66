// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package typeinfo contains the reflection code of beanmeta. It discovers the
attributes of bean types, following embedded structs when asked to, and binds
the mutators used to set those attributes on live beans.
*/
package typeinfo
