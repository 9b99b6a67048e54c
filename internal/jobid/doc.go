/*
Package jobid provides the structured identity of an expanded job and the
parsing of dependency references.

A job name has the canonical form

	<label>/<subtree>/<te>[_<suffix>][_<combination>]

where the path part is normalized (no empty or `.` segments) and the suffix
and combination parts are omitted when empty. The job id (jid) is the md5 of
that name, which keeps it stable across repeated expansions of the same input.
*/
package jobid
